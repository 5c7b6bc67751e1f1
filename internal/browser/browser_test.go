package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/chromad/internal/input"
)

type recordRunner struct {
	cmds []string
}

func (r *recordRunner) Run(_ context.Context, name string, args ...string) error {
	r.cmds = append(r.cmds, name+" "+strings.Join(args, " "))
	return nil
}

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/watch?v=1", true},
		{"http://localhost:8080", true},
		{"file:///tmp/a.html", true},
		{"javascript:alert(1)", false},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		err := CheckURL(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("CheckURL(%q) = %v, want ok=%v", tt.url, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidURL) {
			t.Errorf("CheckURL(%q) error %v is not ErrInvalidURL", tt.url, err)
		}
	}
}

func TestSystemOpener(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open https://example.com"},
		{"darwin", "open https://example.com"},
		{"windows", "rundll32 url.dll,FileProtocolHandler https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			r := &recordRunner{}
			o := &SystemOpener{runner: r, goos: tt.goos}
			if err := o.Open(context.Background(), "https://example.com"); err != nil {
				t.Fatal(err)
			}
			if len(r.cmds) != 1 || r.cmds[0] != tt.want {
				t.Errorf("commands = %v, want %q", r.cmds, tt.want)
			}
		})
	}
}

func TestSystemOpener_RejectsBadURL(t *testing.T) {
	r := &recordRunner{}
	o := NewSystemOpener(r)
	if err := o.Open(context.Background(), "javascript:void(0)"); err == nil {
		t.Fatal("expected an error")
	}
	if len(r.cmds) != 0 {
		t.Errorf("ran %v for a rejected url", r.cmds)
	}
}

func TestRodOpener_RejectsBadURLWithoutLaunching(t *testing.T) {
	o := NewRodOpener(RodConfig{})
	if err := o.Open(context.Background(), "ftp://x"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("err = %v", err)
	}
	if o.browser != nil || o.lnch != nil {
		t.Error("browser launched for a rejected url")
	}
	if err := o.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSystemOpener_DoesNotBlockOnLaunchedBrowser(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\nsleep 10 &\nexit 0\n"
	if err := os.WriteFile(filepath.Join(dir, "xdg-open"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	o := &SystemOpener{runner: input.ExecRunner{WaitDelay: 100 * time.Millisecond}, goos: "linux"}
	start := time.Now()
	if err := o.Open(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Open took %v, blocked on the browser process", elapsed)
	}
}

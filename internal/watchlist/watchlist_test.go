package watchlist

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/kv"
)

type fakeBrowser struct {
	opened []string
	err    error
}

func (b *fakeBrowser) Open(_ context.Context, url string) error {
	b.opened = append(b.opened, url)
	return b.err
}

func threeItems() []Item {
	return []Item{
		{Title: "Alpha", Progress: 0, Episodes: 2, URL: "https://ex.com/{slug}-episode-{episode}"},
		{Title: "Beta: The Show!", Progress: 4},
		{Title: "Gamma", Progress: 1, URL: "https://ex.com/watch?q={title}&ep={episode}"},
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Beta: The Show!":     "beta-the-show",
		"  Spaced   Out  ":    "spaced-out",
		"It's Fine, Really?":  "its-fine-really",
		"already-slugged_one": "already-slugged-one",
		"進撃の巨人":               "進撃の巨人",
		"ソードアート・オンライン":        "ソードアートオンライン",
		"鬼滅の刃　遊郭編":            "鬼滅の刃-遊郭編",
		"Café 2":              "café-2",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEpisodeURL(t *testing.T) {
	items := threeItems()
	tests := []struct {
		item    Item
		episode int
		want    string
	}{
		{items[0], 1, "https://ex.com/alpha-episode-1"},
		{items[1], 5, "https://duckduckgo.com/?q=Beta%3A+The+Show%21+episode+5"},
		{items[2], 2, "https://ex.com/watch?q=Gamma&ep=2"},
	}
	for _, tt := range tests {
		if got := tt.item.EpisodeURL(tt.episode); got != tt.want {
			t.Errorf("%s ep %d = %q, want %q", tt.item.Title, tt.episode, got, tt.want)
		}
	}
}

func TestNavigate_Wraps(t *testing.T) {
	l := New(threeItems(), nil, nil)
	ctx := context.Background()

	steps := []struct {
		dir  string
		want int
	}{
		{actions.DirectionUp, 2},
		{actions.DirectionDown, 0},
		{actions.DirectionDown, 1},
		{actions.DirectionLast, 2},
		{actions.DirectionDown, 0},
		{actions.DirectionFirst, 0},
		{actions.DirectionShow, 0},
	}
	for i, s := range steps {
		if err := l.Navigate(ctx, s.dir); err != nil {
			t.Fatalf("step %d %s: %v", i, s.dir, err)
		}
		sel, _ := l.Selection()
		if sel.Index != s.want {
			t.Errorf("step %d %s: index %d, want %d", i, s.dir, sel.Index, s.want)
		}
	}

	if err := l.Navigate(ctx, "sideways"); !errors.Is(err, ErrBadDirection) {
		t.Errorf("err = %v, want ErrBadDirection", err)
	}
}

func TestNavigate_PlayAndReplay(t *testing.T) {
	b := &fakeBrowser{}
	l := New(threeItems(), b, nil)
	ctx := context.Background()

	if err := l.Navigate(ctx, actions.DirectionReplay); err != nil {
		t.Fatal(err)
	}
	if err := l.Navigate(ctx, actions.DirectionPlay); err != nil {
		t.Fatal(err)
	}
	if err := l.Navigate(ctx, actions.DirectionPlay); err != nil {
		t.Fatal(err)
	}
	if err := l.Navigate(ctx, actions.DirectionPlay); !errors.Is(err, ErrFinished) {
		t.Errorf("err = %v, want ErrFinished", err)
	}

	want := []string{
		"https://ex.com/alpha-episode-1",
		"https://ex.com/alpha-episode-1",
		"https://ex.com/alpha-episode-2",
	}
	if len(b.opened) != len(want) {
		t.Fatalf("opened %v, want %v", b.opened, want)
	}
	for i := range want {
		if b.opened[i] != want[i] {
			t.Errorf("open %d = %q, want %q", i, b.opened[i], want[i])
		}
	}

	sel, _ := l.Selection()
	if sel.Progress != 2 {
		t.Errorf("progress = %d, want 2", sel.Progress)
	}
}

func TestNavigate_FailedOpenKeepsProgress(t *testing.T) {
	b := &fakeBrowser{err: errors.New("no display")}
	l := New(threeItems(), b, nil)

	if err := l.Navigate(context.Background(), actions.DirectionPlay); err == nil {
		t.Fatal("expected error")
	}
	if sel, _ := l.Selection(); sel.Progress != 0 {
		t.Errorf("progress advanced to %d after a failed open", sel.Progress)
	}
}

func TestNavigate_NoBrowserOrItems(t *testing.T) {
	if err := New(threeItems(), nil, nil).Navigate(context.Background(), actions.DirectionPlay); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("err = %v, want ErrNoBrowser", err)
	}
	if err := New(nil, nil, nil).Navigate(context.Background(), actions.DirectionDown); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestStatePersists(t *testing.T) {
	bucket := kv.NewMemoryBucket("watchlist")
	b := &fakeBrowser{}
	ctx := context.Background()

	first := New(threeItems(), b, bucket)
	if err := first.Navigate(ctx, actions.DirectionLast); err != nil {
		t.Fatal(err)
	}
	if err := first.Navigate(ctx, actions.DirectionPlay); err != nil {
		t.Fatal(err)
	}

	second := New(threeItems(), b, bucket)
	sel, ok := second.Selection()
	if !ok || sel.Index != 2 || sel.Title != "Gamma" || sel.Progress != 2 {
		t.Errorf("restored selection = %+v", sel)
	}
}

func TestNonLatinTitlesKeepSeparateProgress(t *testing.T) {
	bucket := kv.NewMemoryBucket("watchlist")
	b := &fakeBrowser{}
	ctx := context.Background()
	items := func() []Item {
		return []Item{
			{Title: "進撃の巨人", Progress: 0, URL: "https://ex.com/{slug}/{episode}"},
			{Title: "鬼滅の刃", Progress: 5},
		}
	}

	first := New(items(), b, bucket)
	if err := first.Navigate(ctx, actions.DirectionPlay); err != nil {
		t.Fatal(err)
	}
	if err := first.Navigate(ctx, actions.DirectionDown); err != nil {
		t.Fatal(err)
	}
	if err := first.Navigate(ctx, actions.DirectionPlay); err != nil {
		t.Fatal(err)
	}

	if len(b.opened) == 0 || b.opened[0] != "https://ex.com/"+url.PathEscape("進撃の巨人")+"/1" {
		t.Errorf("opened = %v", b.opened)
	}

	second := New(items(), b, bucket)
	got := second.Items()
	if got[0].Progress != 1 || got[1].Progress != 6 {
		t.Errorf("restored progress = %d, %d; want 1, 6", got[0].Progress, got[1].Progress)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		items, err := Load(filepath.Join(dir, "none.json"))
		if err != nil || len(items) != len(SampleItems()) {
			t.Errorf("items = %v, err = %v", items, err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		os.WriteFile(path, []byte(`[]`), 0o644)
		items, err := Load(path)
		if err != nil || len(items) != len(SampleItems()) {
			t.Errorf("items = %v, err = %v", items, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "list.json")
		os.WriteFile(path, []byte(`[{"title":"One","progress":2,"episodes":10},{"title":""}]`), 0o644)
		items, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 || items[0].Title != "One" || items[0].Progress != 2 || items[0].Episodes != 10 {
			t.Errorf("items = %+v", items)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte(`{`), 0o644)
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

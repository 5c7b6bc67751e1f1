// Package watchlist is the selectable list behind the navigate action: a
// series list the colors can scroll through and play the next episode of.
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/actions"
	"github.com/dokzlo13/chromad/internal/kv"
)

// DefaultTemplate is used for items without a url.
const DefaultTemplate = "https://duckduckgo.com/?q={title}+episode+{episode}"

var (
	ErrEmpty        = errors.New("watch list is empty")
	ErrFinished     = errors.New("no episodes left")
	ErrNoBrowser    = errors.New("no browser configured")
	ErrBadDirection = errors.New("unknown direction")
)

const (
	keySelected       = "selected"
	keyProgressPrefix = "progress:"
)

// Item is one series in the list.
type Item struct {
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	Episodes int    `json:"episodes,omitempty"` // zero when unknown
	URL      string `json:"url,omitempty"`      // may contain {title}, {slug} and {episode}
}

// EpisodeURL expands the item's url template for episode.
func (it Item) EpisodeURL(episode int) string {
	tmpl := it.URL
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	return strings.NewReplacer(
		"{title}", url.QueryEscape(it.Title),
		"{slug}", url.PathEscape(Slug(it.Title)),
		"{episode}", strconv.Itoa(episode),
	).Replace(tmpl)
}

// Slug lowercases title, joins words with dashes and drops punctuation.
// Letters and digits of any script are kept.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			dash = true
		}
	}
	return b.String()
}

// progressKey names the bucket entry holding an item's progress. It uses the
// whole title so items whose slugs coincide or come out empty stay apart.
func progressKey(title string) string {
	return keyProgressPrefix + strings.ToLower(strings.TrimSpace(title))
}

// SampleItems is the list used when no watch list file is available.
func SampleItems() []Item {
	return []Item{
		{Title: "Sample Series 1", Progress: 3, Episodes: 12, URL: "https://example.com/{slug}/episode-{episode}"},
		{Title: "Sample Series 2", Progress: 5, Episodes: 24, URL: "https://example.com/{slug}/episode-{episode}"},
	}
}

// Load reads a JSON array of items from path. A missing or empty file
// yields the sample items.
func Load(path string) ([]Item, error) {
	if path == "" {
		return SampleItems(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("Watch list not found, using sample data")
		return SampleItems(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watch list: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse watch list %s: %w", path, err)
	}

	kept := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			log.Warn().Str("path", path).Msg("Skipping watch list item without a title")
			continue
		}
		kept = append(kept, it)
	}
	if len(kept) == 0 {
		log.Warn().Str("path", path).Msg("Watch list is empty, using sample data")
		return SampleItems(), nil
	}
	return kept, nil
}

// Selection describes the selected item.
type Selection struct {
	Index    int    `json:"index"`
	Count    int    `json:"count"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	Episodes int    `json:"episodes,omitempty"`
}

// List is a navigable watch list. It implements actions.Navigator.
type List struct {
	mu       sync.Mutex
	items    []Item
	selected int

	browser actions.Browser
	bucket  kv.Bucket
}

// New creates a list. Selection and progress stored in bucket override the
// item data; bucket may be nil.
func New(items []Item, browser actions.Browser, bucket kv.Bucket) *List {
	l := &List{
		items:   append([]Item(nil), items...),
		browser: browser,
		bucket:  bucket,
	}
	l.restore()
	return l
}

func (l *List) restore() {
	if l.bucket == nil {
		return
	}

	var idx int
	if found, err := l.bucket.Load(keySelected, &idx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore watch list selection")
	} else if found && idx >= 0 && idx < len(l.items) {
		l.selected = idx
	}

	for i := range l.items {
		var progress int
		found, err := l.bucket.Load(progressKey(l.items[i].Title), &progress)
		if err != nil {
			log.Warn().Err(err).Str("title", l.items[i].Title).Msg("Failed to restore progress")
			continue
		}
		if found {
			l.items[i].Progress = progress
		}
	}
}

// Selection returns the selected item; ok is false for an empty list.
func (l *List) Selection() (Selection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectionLocked()
}

func (l *List) selectionLocked() (Selection, bool) {
	if len(l.items) == 0 {
		return Selection{}, false
	}
	it := l.items[l.selected]
	return Selection{
		Index:    l.selected,
		Count:    len(l.items),
		Title:    it.Title,
		Progress: it.Progress,
		Episodes: it.Episodes,
	}, true
}

// Items returns a copy of the list.
func (l *List) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Item(nil), l.items...)
}

// Navigate implements actions.Navigator.
func (l *List) Navigate(ctx context.Context, direction string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.items)
	if n == 0 {
		return ErrEmpty
	}

	switch direction {
	case actions.DirectionUp:
		l.selectLocked((l.selected - 1 + n) % n)
	case actions.DirectionDown:
		l.selectLocked((l.selected + 1) % n)
	case actions.DirectionFirst:
		l.selectLocked(0)
	case actions.DirectionLast:
		l.selectLocked(n - 1)
	case actions.DirectionShow:
		l.logSelectionLocked("Watch list selection")
	case actions.DirectionPlay:
		return l.playLocked(ctx, true)
	case actions.DirectionReplay:
		return l.playLocked(ctx, false)
	default:
		return fmt.Errorf("%w: %q", ErrBadDirection, direction)
	}
	return nil
}

func (l *List) selectLocked(idx int) {
	l.selected = idx
	l.persist(keySelected, idx)
	l.logSelectionLocked("Watch list selection moved")
}

func (l *List) logSelectionLocked(msg string) {
	sel, _ := l.selectionLocked()
	log.Info().
		Int("index", sel.Index+1).
		Int("count", sel.Count).
		Str("title", sel.Title).
		Int("progress", sel.Progress).
		Msg(msg)
}

// playLocked opens the next episode and advances progress, or reopens the
// current one when next is false.
func (l *List) playLocked(ctx context.Context, next bool) error {
	if l.browser == nil {
		return ErrNoBrowser
	}

	it := &l.items[l.selected]
	episode := it.Progress
	if next {
		episode++
	}
	if episode < 1 {
		episode = 1
	}
	if it.Episodes > 0 && episode > it.Episodes {
		return fmt.Errorf("%w: %s has %d episodes", ErrFinished, it.Title, it.Episodes)
	}

	target := it.EpisodeURL(episode)
	if err := l.browser.Open(ctx, target); err != nil {
		return fmt.Errorf("failed to open %s episode %d: %w", it.Title, episode, err)
	}

	log.Info().Str("title", it.Title).Int("episode", episode).Str("url", target).Msg("Playing episode")
	if next {
		it.Progress = episode
		l.persist(progressKey(it.Title), episode)
	}
	return nil
}

func (l *List) persist(key string, value int) {
	if l.bucket == nil {
		return
	}
	if err := l.bucket.Store(key, value, nil); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to persist watch list state")
	}
}

package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp"

	"swc/internal/logging"
	"swc/internal/services"
)

const (
	// DefaultTimeout bounds a single playlist enumeration.
	DefaultTimeout = 60 * time.Second

	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Item is one playlist entry.
type Item struct {
	VideoID string
	Title   string
}

// URL returns the watch URL for the entry.
func (i Item) URL() string {
	return fmt.Sprintf(watchURLTemplate, i.VideoID)
}

// Lister enumerates every entry of a playlist.
type Lister interface {
	ListItems(ctx context.Context, playlistID string) ([]Item, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context, playlistID string) ([]Item, error)

// ListItems implements Lister.
func (f ListerFunc) ListItems(ctx context.Context, playlistID string) ([]Item, error) {
	return f(ctx, playlistID)
}

type ytdlpLister struct{}

func (ytdlpLister) ListItems(ctx context.Context, playlistID string) ([]Item, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, Item{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// Option configures an Expander.
type Option func(*Expander)

// WithLister replaces the library-backed lister.
func WithLister(lister Lister) Option {
	return func(e *Expander) {
		if lister != nil {
			e.lister = lister
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Expander) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// Expander turns playlist locators into entry locators.
type Expander struct {
	lister  Lister
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs an Expander.
func New(logger *slog.Logger, opts ...Option) *Expander {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Expander{
		lister:  ytdlpLister{},
		timeout: DefaultTimeout,
		logger:  logging.NewComponentLogger(logger, "playlist"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ID extracts the playlist id from locator.
func ID(locator string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || parsed.Host == "" {
		return "", false
	}
	id := strings.TrimSpace(parsed.Query().Get("list"))
	return id, id != ""
}

// Expand returns the entry locators for a playlist, or locator itself when
// it does not name a playlist.
func (e *Expander) Expand(ctx context.Context, locator string) ([]string, error) {
	id, ok := ID(locator)
	if !ok {
		return []string{locator}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	items, err := e.lister.ListItems(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTransient, "playlist", "expand",
				fmt.Sprintf("listing %s timed out after %s", id, e.timeout), err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "playlist", "expand",
			fmt.Sprintf("list playlist %s", id), err)
	}

	locators := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.VideoID) == "" {
			continue
		}
		if _, dup := seen[item.VideoID]; dup {
			continue
		}
		seen[item.VideoID] = struct{}{}
		locators = append(locators, item.URL())
	}
	if len(locators) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "playlist", "expand",
			fmt.Sprintf("playlist %s has no entries", id), nil)
	}

	e.logger.Info("playlist expanded",
		logging.String("playlist_id", id),
		logging.Int("entries", len(locators)),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "playlist_expanded"),
	)
	return locators, nil
}

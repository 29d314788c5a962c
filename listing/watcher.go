package listing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/page"
	"github.com/teranos/dropwatch/pulse"
)

// WatcherConfig wires a Watcher's collaborators. Only Scanner is required.
type WatcherConfig struct {
	Scanner  Scanner
	Keywords Keywords
	Limiter  *pulse.Limiter // Caps reloads; nil means unlimited
	Recorder Recorder       // Optional sighting audit
	RunID    string
	Log      *zap.SugaredLogger
}

// Watcher holds the per-session state of a listing monitor
type Watcher struct {
	cfg    WatcherConfig
	seen   *SeenSet
	checks int
	log    *zap.SugaredLogger
}

// NewWatcher creates a watcher with an empty seen set
func NewWatcher(cfg WatcherConfig) *Watcher {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Scanner.Log == nil {
		cfg.Scanner.Log = log
	}
	return &Watcher{cfg: cfg, seen: NewSeenSet(), log: log}
}

// Seen exposes the seen set
func (w *Watcher) Seen() *SeenSet {
	return w.seen
}

// Checks returns how many Check calls have run
func (w *Watcher) Checks() int {
	return w.checks
}

// Baseline scans the page and seeds the seen set so that only items
// appearing afterwards are reported.
func (w *Watcher) Baseline(ctx context.Context, p page.Page) (int, error) {
	items, err := w.cfg.Scanner.Scan(ctx, p)
	if err != nil {
		return 0, errors.Wrap(err, "baseline scan")
	}
	Seed(w.seen, items)
	w.log.Infow("Baseline recorded, existing items will be ignored",
		logger.FieldCount, len(items))
	return len(items), nil
}

// Check reloads the page (except on the first check), scans it, and returns
// the first new item matching the keywords. New non-matching items are
// marked seen. Returns nil when nothing new matched.
func (w *Watcher) Check(ctx context.Context, p page.Page) (*Item, error) {
	if w.checks > 0 {
		if w.cfg.Limiter != nil {
			if err := w.cfg.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if err := p.Reload(ctx); err != nil {
			return nil, errors.Wrap(err, "reload listing")
		}
	}
	w.checks++

	items, err := w.cfg.Scanner.Scan(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "scan listing")
	}

	fresh := Diff(items, w.seen)
	var found *Item
	now := time.Now()
	for i := range fresh {
		it := fresh[i]
		kw, matched := w.cfg.Keywords.Match(it.Title)
		w.record(ctx, it, matched, now)
		if matched && found == nil {
			found = &it
			w.log.Infow("New item matches keywords",
				logger.FieldItemID, it.ID,
				logger.FieldTitle, it.Title,
				logger.FieldURL, it.URL,
				"keyword", kw)
		}
	}
	if len(fresh) > 0 {
		w.log.Debugw("New items on listing", logger.FieldCount, len(fresh), "seen", w.seen.Len())
	}
	return found, nil
}

// ScanOnce scans without touching the seen set and returns every item that
// matches the keywords, new or not.
func (w *Watcher) ScanOnce(ctx context.Context, p page.Page) ([]Item, error) {
	items, err := w.cfg.Scanner.Scan(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "scan listing")
	}
	return Filter(items, w.cfg.Keywords), nil
}

// record failures never interrupt monitoring
func (w *Watcher) record(ctx context.Context, it Item, matched bool, at time.Time) {
	if w.cfg.Recorder == nil {
		return
	}
	if err := w.cfg.Recorder.Record(ctx, w.cfg.RunID, it, matched, at); err != nil {
		w.log.Warnw("Failed to record listing item", logger.FieldItemID, it.ID, logger.FieldError, err)
	}
}

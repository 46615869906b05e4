package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/tweaks/internal/jsonfile"
	"github.com/kalambet/tweaks/internal/storage"
	"github.com/kalambet/tweaks/internal/tweak"
)

var (
	ErrUnknownFormat  = errors.New("unknown persistence format")
	ErrInvalidStoreID = errors.New("invalid store identifier")
	ErrClosed         = errors.New("store closed")
)

// Format selects the on-disk encoding of a store.
type Format string

const (
	// FormatArchive is the kind-partitioned SQLite archive (.db).
	FormatArchive Format = "archive"
	// FormatJSON is the flat JSON document (.json).
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatArchive, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Codec encodes a whole cache to durable storage and back.
type Codec interface {
	Path() string
	Load() (tweak.Cache, error)
	Save(tweak.Cache) error
}

// DefaultDir is the directory that holds all stores under a data directory.
func DefaultDir(dataDir string) string {
	return filepath.Join(dataDir, "tweaks")
}

// NewCodec returns the codec for storeID in dir.
func NewCodec(dir, storeID string, format Format, logger *slog.Logger) (Codec, error) {
	if storeID == "" || storeID == "." || storeID == ".." || strings.ContainsAny(storeID, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreID, storeID)
	}
	switch format {
	case FormatArchive:
		return storage.New(filepath.Join(dir, storeID+"."+storage.Extension), logger), nil
	case FormatJSON:
		return jsonfile.New(filepath.Join(dir, storeID+"."+jsonfile.Extension), logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Option configures a Persistency.
type Option func(*Persistency)

// WithLogger sets the logger used for swallowed load and write failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Persistency) { p.logger = l }
}

// Persistency owns the cache of persisted tweak values for one store. Reads
// and writes of the cache happen on the caller's goroutine; every mutation
// schedules a full rewrite through the codec on a private serial queue.
//
// Decode and write failures never reach the caller: a store that cannot be
// read behaves as empty, and a failed write leaves the in-memory cache
// authoritative until the next mutation rewrites it.
type Persistency struct {
	codec  Codec
	queue  *serialQueue
	logger *slog.Logger

	mu    sync.RWMutex
	cache tweak.Cache

	errMu    sync.Mutex
	writeErr error
}

// New creates the store directory if needed and loads storeID from it.
// Only failing to create the directory is an error.
func New(dir, storeID string, format Format, opts ...Option) (*Persistency, error) {
	p := &Persistency{logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	codec, err := NewCodec(dir, storeID, format, p.logger)
	if err != nil {
		return nil, err
	}
	return newPersistency(p, codec)
}

// NewWithCodec is like New but uses the given codec.
func NewWithCodec(codec Codec, opts ...Option) (*Persistency, error) {
	p := &Persistency{logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return newPersistency(p, codec)
}

func newPersistency(p *Persistency, codec Codec) (*Persistency, error) {
	p.codec = codec
	p.logger = p.logger.With("store", codec.Path())

	if err := os.MkdirAll(filepath.Dir(codec.Path()), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	p.queue = newSerialQueue()
	p.cache = p.Load()
	return p, nil
}

// Path returns the backing file.
func (p *Persistency) Path() string { return p.codec.Path() }

// Load decodes the durable store on the serial queue and returns it. It
// does not replace the in-memory cache. Missing, unreadable or corrupt
// stores load as empty.
func (p *Persistency) Load() tweak.Cache {
	var cache tweak.Cache
	p.queue.sync(func() {
		c, err := p.codec.Load()
		if err != nil {
			p.logger.Warn("could not load tweaks, using defaults", "error", err)
			recordLoadFailure(p.codec.Path())
			c = tweak.Cache{}
		}
		cache = c
	})
	return cache
}

// Get returns the stored value for id.
func (p *Persistency) Get(id tweak.ID) (tweak.Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.cache[id]
	return v, ok
}

// GetClipped returns the stored value for id clipped into [lo, hi]. Bounds
// only apply to numeric values of their own kind.
func (p *Persistency) GetClipped(id tweak.ID, lo, hi tweak.Value) (tweak.Value, bool) {
	v, ok := p.Get(id)
	if !ok {
		return tweak.Value{}, false
	}
	return v.Clip(lo, hi), true
}

// GetReconciled returns the stored value for the descriptor's tweak, adapted
// to its current kind, bounds and options. See tweak.Reconcile.
func (p *Persistency) GetReconciled(d tweak.Descriptor) (tweak.Value, bool) {
	id, err := d.ID()
	if err != nil {
		return tweak.Value{}, false
	}
	v, ok := p.Get(id)
	if !ok {
		return tweak.Value{}, false
	}
	return tweak.Reconcile(d, v)
}

// Set stores value for id, or removes the entry when value is nil. The
// change is visible to Get immediately; the rewrite happens asynchronously.
func (p *Persistency) Set(id tweak.ID, value *tweak.Value) {
	p.mu.Lock()
	if value == nil || !value.IsValid() {
		delete(p.cache, id)
	} else {
		p.cache[id] = *value
	}
	p.scheduleSave(p.cache.Clone())
	p.mu.Unlock()
}

// ClearAll removes every stored value.
func (p *Persistency) ClearAll() {
	p.mu.Lock()
	p.cache = tweak.Cache{}
	p.scheduleSave(tweak.Cache{})
	p.mu.Unlock()
}

// Snapshot returns a copy of the in-memory cache.
func (p *Persistency) Snapshot() tweak.Cache {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache.Clone()
}

// Flush waits until every write scheduled so far has run and returns Err.
func (p *Persistency) Flush() error {
	p.queue.sync(func() {})
	return p.Err()
}

// Err returns the outcome of the most recent durable write: nil after a
// successful write, the codec error after a failed one, and ErrClosed when
// the last mutation arrived after Close. Mutations never return it; callers
// that must know whether a change reached disk check it after Flush or Close.
func (p *Persistency) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.writeErr
}

func (p *Persistency) setErr(err error) {
	p.errMu.Lock()
	p.writeErr = err
	p.errMu.Unlock()
}

// Close waits for pending writes and stops the queue. Later mutations only
// change the in-memory cache. Err reports whether the final write succeeded.
func (p *Persistency) Close() {
	p.queue.close()
}

// scheduleSave must be called with p.mu held so that writes are queued in
// the same order as the mutations they capture.
func (p *Persistency) scheduleSave(snapshot tweak.Cache) {
	ok := p.queue.async(func() {
		start := time.Now()
		err := p.codec.Save(snapshot)
		recordWrite(p.codec.Path(), len(snapshot), time.Since(start), err)
		p.setErr(err)
		if err != nil {
			p.logger.Warn("could not save tweaks", "entries", len(snapshot), "error", err)
		}
	})
	if !ok {
		p.setErr(ErrClosed)
		p.logger.Warn("store closed, change kept in memory only", "entries", len(snapshot))
	}
}

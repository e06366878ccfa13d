package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrNotLoaded is returned when no catalog has been loaded yet.
var ErrNotLoaded = errors.New("catalog not loaded")

// Store publishes the current catalog snapshot. Readers get whichever snapshot
// was current when they called Current; Swap and Reload never block them.
type Store struct {
	src      Source
	current  atomic.Pointer[Catalog]
	loadedAt atomic.Pointer[time.Time]
	reloadMu sync.Mutex
	logger   *zap.Logger
	onSwap   func(*Catalog)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnSwap registers fn to run after every successful swap.
func WithOnSwap(fn func(*Catalog)) StoreOption {
	return func(s *Store) {
		s.onSwap = fn
	}
}

// NewStore creates an empty store that reloads from src.
func NewStore(src Source, opts ...StoreOption) *Store {
	s := &Store{src: src, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the current snapshot or ErrNotLoaded.
func (s *Store) Current() (*Catalog, error) {
	c := s.current.Load()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c, nil
}

// LoadedAt returns when the current snapshot was installed.
func (s *Store) LoadedAt() time.Time {
	if t := s.loadedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Swap installs c as the current snapshot.
func (s *Store) Swap(c *Catalog) {
	now := time.Now()
	s.current.Store(c)
	s.loadedAt.Store(&now)
	if s.onSwap != nil {
		s.onSwap(c)
	}
}

// Reload loads a fresh catalog from the source and swaps it in. On failure the
// previous snapshot stays current. Concurrent reloads are serialized.
func (s *Store) Reload(ctx context.Context) (*Catalog, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	c, err := Load(ctx, s.src)
	if err != nil {
		s.logger.Error("catalog reload failed", zap.Error(err))
		return nil, err
	}
	s.Swap(c)
	s.logger.Info("catalog loaded",
		zap.Int("movies", c.Len()),
		zap.Int("dimensions", c.Dimensions()),
		zap.Duration("duration", time.Since(start)))
	return c, nil
}

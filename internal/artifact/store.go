package artifact

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store holds the current Bundle behind an atomic pointer. Readers take one
// snapshot per request and never see a half-reloaded state: Reload builds a
// complete new Bundle first and then swaps the single pointer. Nothing is ever
// patched in place.
type Store struct {
	paths    Paths
	logger   *zap.Logger
	current  atomic.Pointer[Bundle]
	reloadMu sync.Mutex
}

// NewStore loads the artifacts at paths and fails fast when any of them is
// missing or invalid; a process without a valid bundle must not serve.
func NewStore(paths Paths, logger *zap.Logger) (*Store, error) {
	bundle, err := Load(paths)
	if err != nil {
		return nil, err
	}
	s := &Store{paths: paths, logger: logger}
	s.current.Store(bundle)
	if logger != nil {
		logger.Info("artifacts loaded", zap.String("summary", bundle.Summary()))
	}
	return s, nil
}

// Current returns the live snapshot. Never nil after a successful NewStore.
func (s *Store) Current() *Bundle {
	return s.current.Load()
}

// Reload builds a fresh Bundle from disk and swaps it in atomically. On
// failure the previous bundle stays live and the error is returned; a broken
// retraining run must not take down serving.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	bundle, err := Load(s.paths)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("artifact reload failed, keeping previous bundle", zap.Error(err))
		}
		return err
	}
	s.current.Store(bundle)
	if s.logger != nil {
		s.logger.Info("artifacts reloaded", zap.String("summary", bundle.Summary()))
	}
	return nil
}

// Paths returns the paths this store loads from.
func (s *Store) Paths() Paths {
	return s.paths
}

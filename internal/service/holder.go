package service

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Builder constructs a fresh Service, typically by reloading configuration
// and rebuilding the provider registry.
type Builder func() (*Service, error)

// Holder provides an atomically swappable Service so configuration can be
// reloaded without restarting the process. Readers never block on a rebuild;
// they keep the previous instance until the swap completes.
type Holder struct {
	mu      sync.Mutex
	build   Builder
	current atomic.Pointer[Service]
}

// NewHolder runs the builder once and wraps the result.
func NewHolder(build Builder) (*Holder, error) {
	if build == nil {
		return nil, errors.New("builder must not be nil")
	}

	svc, err := build()
	if err != nil {
		return nil, err
	}

	h := &Holder{build: build}
	h.current.Store(svc)
	return h, nil
}

// Current returns the live service instance.
func (h *Holder) Current() *Service {
	return h.current.Load()
}

// Rebuild runs the builder again and swaps in the result. On failure the
// previous instance stays live.
func (h *Holder) Rebuild() (*Service, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	svc, err := h.build()
	if err != nil {
		return nil, err
	}

	h.current.Store(svc)
	return svc, nil
}

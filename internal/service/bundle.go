package service

import (
	"sync"

	"ragchat/internal/domain"
)

// Bundle holds the processing options for the session's next job. It is
// frozen while a job is processing or ready.
type Bundle struct {
	mu     sync.Mutex
	cfg    domain.Config
	frozen bool
}

func NewBundle(initial domain.Config) *Bundle {
	return &Bundle{cfg: initial}
}

func (b *Bundle) Get() domain.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Set merges p into the bundle. It fails with ErrConfigFrozen while frozen
// and leaves the bundle untouched when the result is invalid.
func (b *Bundle) Set(p domain.ConfigPatch) (domain.Config, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return b.cfg, ErrConfigFrozen
	}
	next := p.Apply(b.cfg)
	if err := next.Validate(); err != nil {
		return b.cfg, err
	}
	b.cfg = next
	return next, nil
}

func (b *Bundle) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// freeze returns the bound configuration.
func (b *Bundle) freeze() domain.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	return b.cfg
}

func (b *Bundle) unfreeze() {
	b.mu.Lock()
	b.frozen = false
	b.mu.Unlock()
}

// replace overwrites the bundle wholesale with server-reported values.
func (b *Bundle) replace(cfg domain.Config, frozen bool) {
	b.mu.Lock()
	b.cfg = cfg
	b.frozen = frozen
	b.mu.Unlock()
}

package bus

import "sync"

// Line is a level-triggered interrupt line. Assert and Deassert are
// idempotent: a device may recompute and re-apply its level freely without
// the line toggling.
type Line interface {
	Assert()
	Deassert()
}

// Pin is a Line that remembers its level and reports transitions.
type Pin struct {
	change func(level bool)

	mu    sync.Mutex
	level bool
}

// NewPin returns a deasserted Pin. If change is non-nil it is invoked once
// per level transition, never for a re-applied level.
func NewPin(change func(level bool)) *Pin {
	return &Pin{change: change}
}

func (p *Pin) Assert()   { p.set(true) }
func (p *Pin) Deassert() { p.set(false) }

// Level reports the current level of the line.
func (p *Pin) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *Pin) set(level bool) {
	p.mu.Lock()
	changed := p.level != level
	p.level = level
	p.mu.Unlock()
	if changed && p.change != nil {
		p.change(level)
	}
}

package assets

import "github.com/google/uuid"

// Progress collects the handles requested during loading so callers can poll
// how many of them are ready. Load callbacks receive it as an optional sink.
type Progress struct {
	tracked map[uuid.UUID]Handle
	order   []uuid.UUID
}

// NewProgress creates an empty tracker.
func NewProgress() *Progress {
	return &Progress{
		tracked: make(map[uuid.UUID]Handle),
	}
}

// Track adds handles to the tracker. Handles already tracked are ignored.
func (p *Progress) Track(handles ...Handle) {
	for _, h := range handles {
		if _, ok := p.tracked[h.ID]; ok {
			continue
		}
		p.tracked[h.ID] = h
		p.order = append(p.order, h.ID)
	}
}

// Poll asks the source for the state of every tracked handle.
// Failed assets count as done so a single bad asset cannot stall loading forever.
func (p *Progress) Poll(src Source) (done, total int) {
	for _, id := range p.order {
		if src.State(p.tracked[id]) != StatePending {
			done++
		}
	}
	return done, len(p.order)
}

// Failed returns the tracked handles the source reports as failed.
func (p *Progress) Failed(src Source) []Handle {
	var failed []Handle
	for _, id := range p.order {
		h := p.tracked[id]
		if src.State(h) == StateFailed {
			failed = append(failed, h)
		}
	}
	return failed
}

// Complete reports whether every tracked handle is no longer pending.
func (p *Progress) Complete(src Source) bool {
	done, total := p.Poll(src)
	return done == total
}

// Len returns the number of tracked handles.
func (p *Progress) Len() int {
	return len(p.order)
}

// Reset forgets every tracked handle.
func (p *Progress) Reset() {
	clear(p.tracked)
	p.order = p.order[:0]
}

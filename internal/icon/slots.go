package icon

import (
	"context"
	"errors"
	"sync"
)

// Flight is one in-flight icon load.
type Flight struct {
	id     string
	slot   Type
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
	img    *Image
	err    error
}

// ID returns the load id.
func (f *Flight) ID() string {
	return f.id
}

// Context is cancelled when the load is superseded or cancelled.
func (f *Flight) Context() context.Context {
	return f.ctx
}

// Done is closed once the load finished.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the load finished or ctx is done.
func (f *Flight) Wait(ctx context.Context) (*Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.img, f.err
	}
}

func (f *Flight) finish(img *Image, err error) {
	f.once.Do(func() {
		if f.ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
			err = context.Cause(f.ctx)
		}
		if err != nil {
			img = nil
		}
		f.img, f.err = img, err
		f.cancel(nil)
		close(f.done)
	})
}

// Slots allows at most one in-flight load per slot type.
type Slots struct {
	mu      sync.Mutex
	flights map[Type]*Flight
}

// NewSlots creates an empty slot table.
func NewSlots() *Slots {
	return &Slots{flights: make(map[Type]*Flight)}
}

// Begin registers a load of id for type t. If the same id is already
// loading, the running flight is returned and leader is false. A different
// id loading in the same slot is cancelled with ErrSuperseded first.
func (s *Slots) Begin(ctx context.Context, t Type, id string) (f *Flight, leader bool) {
	slot := t.Slot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.flights[slot]; ok {
		if cur.id == id {
			return cur, false
		}
		cur.cancel(ErrSuperseded)
		delete(s.flights, slot)
	}

	fctx, cancel := context.WithCancelCause(ctx)
	f = &Flight{
		id:     id,
		slot:   slot,
		ctx:    fctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.flights[slot] = f
	return f, true
}

// Finish records the outcome of f and frees its slot.
func (s *Slots) Finish(f *Flight, img *Image, err error) {
	s.mu.Lock()
	if s.flights[f.slot] == f {
		delete(s.flights, f.slot)
	}
	s.mu.Unlock()

	f.finish(img, err)
}

// Current returns the id loading in the slot of t, or "".
func (s *Slots) Current(t Type) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[t.Slot()]; ok {
		return f.id
	}
	return ""
}

// CancelType cancels the load in the slot of t.
func (s *Slots) CancelType(t Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[t.Slot()]; ok {
		f.cancel(context.Canceled)
		delete(s.flights, t.Slot())
	}
}

// CancelAll cancels every in-flight load.
func (s *Slots) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot, f := range s.flights {
		f.cancel(context.Canceled)
		delete(s.flights, slot)
	}
}

package tree

// EventBufferer defers event delivery while a buffering scope is open.
// Scopes nest; queued events are delivered once the outermost scope exits.
type EventBufferer struct {
	depth   int
	pending []func()
}

// BufferEvents runs fn with event delivery deferred until it returns.
func (b *EventBufferer) BufferEvents(fn func()) {
	b.depth++
	defer func() {
		b.depth--
		if b.depth == 0 {
			b.flush()
		}
	}()
	fn()
}

// Buffering reports whether a scope is currently open.
func (b *EventBufferer) Buffering() bool {
	return b != nil && b.depth > 0
}

func (b *EventBufferer) schedule(flush func()) {
	b.pending = append(b.pending, flush)
}

func (b *EventBufferer) flush() {
	// Listeners may emit again while we deliver; drain until quiet.
	for len(b.pending) > 0 {
		pending := b.pending
		b.pending = nil
		for _, fn := range pending {
			fn()
		}
	}
}

type subscription[E any] struct {
	fn      func(E)
	removed bool
}

// Emitter delivers events of one kind to its listeners, honoring the
// buffering scope of its EventBufferer.
type Emitter[E any] struct {
	bufferer  *EventBufferer
	key       func(E) any
	merge     func(acc, next E) E
	listeners []*subscription[E]

	queue     []E
	index     map[any]int
	scheduled bool
}

// EmitterOption configures how buffered events coalesce.
type EmitterOption[E any] func(*Emitter[E])

// WithKey coalesces buffered events that share a key; the latest one wins
// and keeps the position of the first.
func WithKey[E any](key func(E) any) EmitterOption[E] {
	return func(e *Emitter[E]) { e.key = key }
}

// WithMerge folds all buffered events into a single one.
func WithMerge[E any](merge func(acc, next E) E) EmitterOption[E] {
	return func(e *Emitter[E]) { e.merge = merge }
}

// NewEmitter returns an emitter bound to b. A nil bufferer delivers
// every event immediately.
func NewEmitter[E any](b *EventBufferer, opts ...EmitterOption[E]) *Emitter[E] {
	e := &Emitter[E]{bufferer: b}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn and returns a function that removes it.
func (e *Emitter[E]) Subscribe(fn func(E)) func() {
	sub := &subscription[E]{fn: fn}
	e.listeners = append(e.listeners, sub)
	return func() {
		if sub.removed {
			return
		}
		sub.removed = true
		kept := e.listeners[:0:0]
		for _, s := range e.listeners {
			if s != sub {
				kept = append(kept, s)
			}
		}
		e.listeners = kept
	}
}

// HasListeners reports whether anyone is subscribed.
func (e *Emitter[E]) HasListeners() bool {
	return len(e.listeners) > 0
}

// Fire delivers ev now, or queues it when a buffering scope is open.
func (e *Emitter[E]) Fire(ev E) {
	if len(e.listeners) == 0 {
		return
	}
	if !e.bufferer.Buffering() {
		e.deliver(ev)
		return
	}
	e.enqueue(ev)
}

func (e *Emitter[E]) enqueue(ev E) {
	if !e.scheduled {
		e.scheduled = true
		e.bufferer.schedule(e.flush)
	}
	switch {
	case e.merge != nil && len(e.queue) > 0:
		e.queue[0] = e.merge(e.queue[0], ev)
		return
	case e.key != nil:
		k := e.key(ev)
		if e.index == nil {
			e.index = make(map[any]int)
		}
		if i, ok := e.index[k]; ok {
			e.queue[i] = ev
			return
		}
		e.index[k] = len(e.queue)
	}
	e.queue = append(e.queue, ev)
}

func (e *Emitter[E]) flush() {
	queue := e.queue
	e.queue = nil
	e.index = nil
	e.scheduled = false
	for _, ev := range queue {
		e.deliver(ev)
	}
}

func (e *Emitter[E]) deliver(ev E) {
	// Snapshot so listeners can unsubscribe during delivery.
	listeners := append([]*subscription[E](nil), e.listeners...)
	for _, sub := range listeners {
		if !sub.removed {
			sub.fn(ev)
		}
	}
}

package timeline

// Physical is the injection point for events originating outside the
// logical timeline. Schedule is the only operation a hardware callback is
// permitted to perform: it must not touch reactor state, perform I/O, or
// block. Payloads are handed to the timeline atomically and delivered in
// scheduling order, exactly once each.
type Physical[T any] struct {
	tl       *Timeline
	name     string
	handlers []func(T) error
}

// NewPhysical creates a physical action on the timeline.
func NewPhysical[T any](tl *Timeline, name string) *Physical[T] {
	return &Physical[T]{tl: tl, name: name}
}

// Name returns the action name.
func (a *Physical[T]) Name() string { return a.name }

// OnEvent registers a reaction invoked on the timeline goroutine when a
// scheduled payload is delivered. Registration order is invocation order.
func (a *Physical[T]) OnEvent(fn func(T) error) {
	a.handlers = append(a.handlers, fn)
}

// Schedule injects a payload from any goroutine with zero additional
// delay. The payload is timestamped by wall-clock arrival. Never blocks;
// errors cannot cross this boundary, so handlers report failures to the
// timeline when the event is delivered, not here.
func (a *Physical[T]) Schedule(v T) {
	a.tl.inject(func() error {
		for _, fn := range a.handlers {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	})
}

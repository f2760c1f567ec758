package timeline

import (
	"fmt"

	"github.com/c360/sensorweave/errors"
)

// Kind identifies the payload family a port carries. Kinds are used for
// wiring diagnostics; actual type safety comes from the port's Go type.
type Kind string

// Port payload kinds
const (
	KindAudio   Kind = "audio"
	KindFrame   Kind = "frame"
	KindResults Kind = "results"
	KindLatency Kind = "latency"
	KindTrigger Kind = "trigger"
	KindText    Kind = "text"
)

// AnyPort is the type-erased view of a port, used by pipeline wiring where
// the concrete payload type is not statically known.
type AnyPort interface {
	Name() string
	Kind() Kind
	Present() bool
	// attach connects this port to a downstream port of the same Go type.
	attach(target AnyPort) error
	clear()
}

// Port is a typed, single-valued-per-step connection point. A port is
// either present (a value was produced this step) or absent. Values are
// cleared when the step ends. Set and Get must only be called from
// reactions; connections are established at assembly time and immutable
// once the timeline runs.
type Port[T any] struct {
	tl        *Timeline
	name      string
	kind      Kind
	present   bool
	value     T
	targets   []*Port[T]
	reactions []Reaction
}

// NewPort creates a port bound to the timeline's step lifecycle.
func NewPort[T any](tl *Timeline, name string, kind Kind) *Port[T] {
	p := &Port[T]{tl: tl, name: name, kind: kind}
	tl.registerPort(p)
	return p
}

// Name returns the port name.
func (p *Port[T]) Name() string { return p.name }

// Kind returns the payload kind.
func (p *Port[T]) Kind() Kind { return p.kind }

// Present reports whether a value was produced this step.
func (p *Port[T]) Present() bool { return p.present }

// Get returns the step's value and whether it is present.
func (p *Port[T]) Get() (T, bool) {
	return p.value, p.present
}

// OnPresent registers a reaction triggered when this port becomes present.
// Registration order is trigger order within a step.
func (p *Port[T]) OnPresent(fn Reaction) {
	p.reactions = append(p.reactions, fn)
}

// Set makes the port present with the given value, propagates it to every
// connected downstream port, and enqueues the triggered reactions into the
// current step.
func (p *Port[T]) Set(v T) {
	p.present = true
	p.value = v
	for _, fn := range p.reactions {
		p.tl.enqueue(fn)
	}
	for _, target := range p.targets {
		target.Set(v)
	}
}

func (p *Port[T]) clear() {
	var zero T
	p.present = false
	p.value = zero
}

func (p *Port[T]) attach(target AnyPort) error {
	typed, ok := target.(*Port[T])
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s (%s) -> %s (%s)",
				errors.ErrPortTypeClash, p.name, p.kind, target.Name(), target.Kind()),
			"Port", "attach", "type check")
	}
	p.targets = append(p.targets, typed)
	return nil
}

// Connect wires an upstream port to a downstream port of the same type.
// One-to-many fan-out is allowed; connections are immutable after assembly.
func Connect[T any](from, to *Port[T]) {
	from.targets = append(from.targets, to)
}

// ConnectNamed wires two type-erased ports, failing when their Go types
// differ. Used by pipeline assembly driven from configuration.
func ConnectNamed(from, to AnyPort) error {
	return from.attach(to)
}

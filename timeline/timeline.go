package timeline

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/metric"
)

// Reaction is a unit of work executed on the timeline goroutine.
// A non-nil non-transient error requests a global halt.
type Reaction func() error

// event is a single scheduled occurrence on the timeline.
type event struct {
	tag  time.Time
	seq  uint64
	fire Reaction
}

// eventQueue is a min-heap ordered by (tag, seq).
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].tag.Equal(q[j].tag) {
		return q[i].seq < q[j].seq
	}
	return q[i].tag.Before(q[j].tag)
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Timeline is the single ordered sequence of steps the reactive core
// executes. Construct with New, register ports and actions, then Run.
type Timeline struct {
	// mu guards seq and the injection queue shared with foreign threads.
	mu       sync.Mutex
	seq      uint64
	injected []*event
	notify   chan struct{}

	// Driver-side state, touched only by the Run goroutine.
	queue   eventQueue
	ready   []Reaction
	ports   []clearable
	startup []Reaction
	inStep  bool
	tag     time.Time
	steps   uint64

	stopOnce sync.Once
	stopc    chan struct{}
	stopMu   sync.Mutex
	stopErr  error

	logger  *slog.Logger
	metrics *timelineMetrics
}

// clearable is implemented by ports so the driver can reset presence at
// the end of each step.
type clearable interface {
	clear()
}

// New creates a timeline. The metrics registry may be nil.
func New(logger *slog.Logger, metricsRegistry *metric.Registry) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timeline{
		notify:  make(chan struct{}, 1),
		stopc:   make(chan struct{}),
		logger:  logger.With("component", "timeline"),
		metrics: newTimelineMetrics(metricsRegistry),
	}
}

// Now returns the tag of the step currently executing. Only meaningful
// from within a reaction.
func (tl *Timeline) Now() time.Time {
	return tl.tag
}

// Steps returns the number of logical steps executed so far.
func (tl *Timeline) Steps() uint64 {
	return tl.steps
}

// AtStartup registers a reaction to run in the startup step, before any
// scheduled event fires. Registration order is execution order.
func (tl *Timeline) AtStartup(fn Reaction) {
	tl.startup = append(tl.startup, fn)
}

// Schedule queues a logical action at the current tag plus delay. Logical
// actions may only be scheduled from within a reaction; scheduling from a
// foreign thread must go through a physical action instead.
func (tl *Timeline) Schedule(delay time.Duration, fn Reaction) error {
	if !tl.inStep {
		return errors.WrapInvalid(
			errors.New("logical actions may only be scheduled from within a reaction"),
			"timeline", "Schedule", "caller validation")
	}
	heap.Push(&tl.queue, &event{tag: tl.tag.Add(delay), seq: tl.nextSeq(), fire: fn})
	tl.metrics.observeQueueDepth(len(tl.queue))
	return nil
}

// RequestStop halts the timeline after the current step completes. Safe to
// call from any goroutine. A nil error means a graceful quit; the first
// call wins and later calls are ignored.
func (tl *Timeline) RequestStop(err error) {
	tl.stopMu.Lock()
	if tl.stopErr == nil {
		tl.stopErr = err
	}
	tl.stopMu.Unlock()
	tl.stopOnce.Do(func() { close(tl.stopc) })
}

// haltErr returns the error the timeline halted with, nil for graceful.
func (tl *Timeline) haltErr() error {
	tl.stopMu.Lock()
	defer tl.stopMu.Unlock()
	return tl.stopErr
}

func (tl *Timeline) stopped() bool {
	select {
	case <-tl.stopc:
		return true
	default:
		return false
	}
}

func (tl *Timeline) nextSeq() uint64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.seq++
	return tl.seq
}

// inject is the physical-action entry point. Safe from any goroutine; the
// queue is unbounded so hardware callbacks never block and no payload is
// ever dropped or reordered.
func (tl *Timeline) inject(fire Reaction) {
	tl.mu.Lock()
	tl.seq++
	tl.injected = append(tl.injected, &event{tag: time.Now(), seq: tl.seq, fire: fire})
	tl.mu.Unlock()

	tl.metrics.incPhysical()

	select {
	case tl.notify <- struct{}{}:
	default:
	}
}

// drainInjected moves pending physical events into the driver queue.
func (tl *Timeline) drainInjected() {
	tl.mu.Lock()
	pending := tl.injected
	tl.injected = nil
	tl.mu.Unlock()

	for _, ev := range pending {
		heap.Push(&tl.queue, ev)
	}
	if len(pending) > 0 {
		tl.metrics.observeQueueDepth(len(tl.queue))
	}
}

// Run drives the timeline until a stop is requested or the context is
// canceled. It executes the startup step first, then scheduled events in
// tag order. Returns the halting error; nil for a graceful quit.
func (tl *Timeline) Run(ctx context.Context) error {
	tl.runStep(time.Now(), tl.startupEvents())

	for {
		if tl.stopped() {
			return tl.haltErr()
		}
		tl.drainInjected()

		if tl.queue.Len() == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tl.stopc:
				return tl.haltErr()
			case <-tl.notify:
			}
			continue
		}

		next := tl.queue[0]
		if wait := time.Until(next.tag); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-tl.stopc:
				timer.Stop()
				return tl.haltErr()
			case <-tl.notify:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		tl.runStep(next.tag, tl.popTag(next.tag))
	}
}

// startupEvents adapts the startup reactions into step work.
func (tl *Timeline) startupEvents() []Reaction {
	reactions := make([]Reaction, len(tl.startup))
	copy(reactions, tl.startup)
	return reactions
}

// popTag removes and returns every queued event carrying exactly this tag,
// in sequence order.
func (tl *Timeline) popTag(tag time.Time) []Reaction {
	var fires []Reaction
	for tl.queue.Len() > 0 && tl.queue[0].tag.Equal(tag) {
		ev := heap.Pop(&tl.queue).(*event)
		fires = append(fires, ev.fire)
	}
	return fires
}

// runStep executes one logical step: the triggering reactions, then every
// reaction enqueued by port writes, then port cleanup. All reactions in a
// step observe the same tag.
func (tl *Timeline) runStep(tag time.Time, fires []Reaction) {
	tl.tag = tag
	tl.inStep = true

	for _, fire := range fires {
		tl.runReaction(fire)
	}
	// Port writes fan out inside the same step until quiescence.
	for len(tl.ready) > 0 {
		next := tl.ready[0]
		tl.ready = tl.ready[1:]
		tl.runReaction(next)
	}

	for _, p := range tl.ports {
		p.clear()
	}
	tl.ready = nil
	tl.inStep = false
	tl.steps++
	tl.metrics.incSteps()
}

// runReaction executes one reaction and applies the halt policy: transient
// errors are logged and tolerated, everything else stops the pipeline. The
// current step always completes before the halt takes effect.
func (tl *Timeline) runReaction(fire Reaction) {
	err := fire()
	if err == nil {
		return
	}
	if errors.IsTransient(err) {
		tl.logger.Warn("Transient reaction failure", "error", err)
		return
	}
	tl.logger.Error("Fatal reaction failure, requesting halt", "error", err)
	tl.RequestStop(err)
}

// enqueue adds a port-triggered reaction to the current step.
func (tl *Timeline) enqueue(fn Reaction) {
	tl.ready = append(tl.ready, fn)
}

// registerPort adds a port to the end-of-step cleanup set.
func (tl *Timeline) registerPort(p clearable) {
	tl.ports = append(tl.ports, p)
}

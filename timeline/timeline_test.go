package timeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/errors"
)

// runUntilStopped drives the timeline on a background goroutine and
// returns a wait function yielding Run's result.
func runUntilStopped(t *testing.T, tl *Timeline) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- tl.Run(context.Background())
	}()
	return func() error {
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("timeline did not halt")
			return nil
		}
	}
}

func TestPhysicalDeliveryOrderMatchesSchedulingOrder(t *testing.T) {
	tl := New(nil, nil)
	action := NewPhysical[int](tl, "buffer_ready")

	const n = 100
	var received []int
	action.OnEvent(func(v int) error {
		received = append(received, v)
		if len(received) == n {
			tl.RequestStop(nil)
		}
		return nil
	})

	wait := runUntilStopped(t, tl)

	// Single capture thread scheduling b1..bN in order.
	for i := 0; i < n; i++ {
		action.Schedule(i)
	}

	require.NoError(t, wait())
	require.Len(t, received, n, "exactly once each, no duplication or drop")
	for i, v := range received {
		assert.Equal(t, i, v, "delivery order must equal scheduling order")
	}
}

func TestPhysicalSchedulingSafeFromManyThreads(t *testing.T) {
	tl := New(nil, nil)
	action := NewPhysical[int](tl, "buffer_ready")

	const producers = 8
	const perProducer = 50
	total := producers * perProducer

	counts := make(map[int]int)
	action.OnEvent(func(v int) error {
		counts[v]++
		if len(counts) == total {
			tl.RequestStop(nil)
		}
		return nil
	})

	wait := runUntilStopped(t, tl)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				action.Schedule(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	require.NoError(t, wait())
	require.Len(t, counts, total)
	for v, c := range counts {
		assert.Equal(t, 1, c, "payload %d delivered more than once", v)
	}
}

func TestPortPresenceClearedBetweenSteps(t *testing.T) {
	tl := New(nil, nil)
	out := NewPort[string](tl, "audio_data", KindAudio)
	action := NewPhysical[string](tl, "buffer_ready")

	var presentDuringStep []bool
	action.OnEvent(func(v string) error {
		out.Set(v)
		presentDuringStep = append(presentDuringStep, out.Present())
		return nil
	})

	var observedNextStep bool
	second := NewPhysical[struct{}](tl, "probe")
	second.OnEvent(func(struct{}) error {
		observedNextStep = out.Present()
		tl.RequestStop(nil)
		return nil
	})

	wait := runUntilStopped(t, tl)
	action.Schedule("pcm")
	time.Sleep(20 * time.Millisecond)
	second.Schedule(struct{}{})

	require.NoError(t, wait())
	require.Equal(t, []bool{true}, presentDuringStep)
	assert.False(t, observedNextStep, "port value must not survive its step")
}

func TestPortFanOutDeliversToAllTargets(t *testing.T) {
	tl := New(nil, nil)
	src := NewPort[int](tl, "frame", KindFrame)
	a := NewPort[int](tl, "task_in", KindFrame)
	b := NewPort[int](tl, "display_in", KindFrame)
	Connect(src, a)
	Connect(src, b)

	var got []string
	a.OnPresent(func() error {
		v, ok := a.Get()
		require.True(t, ok)
		got = append(got, fmt.Sprintf("task:%d", v))
		return nil
	})
	b.OnPresent(func() error {
		v, ok := b.Get()
		require.True(t, ok)
		got = append(got, fmt.Sprintf("display:%d", v))
		tl.RequestStop(nil)
		return nil
	})

	trigger := NewPhysical[int](tl, "capture")
	trigger.OnEvent(func(v int) error {
		src.Set(v)
		return nil
	})

	wait := runUntilStopped(t, tl)
	trigger.Schedule(7)

	require.NoError(t, wait())
	assert.Equal(t, []string{"task:7", "display:7"}, got)
}

func TestConnectNamedRejectsTypeClash(t *testing.T) {
	tl := New(nil, nil)
	from := NewPort[int](tl, "latency", KindLatency)
	to := NewPort[string](tl, "text", KindText)

	err := ConnectNamed(from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPortTypeClash))
}

func TestLogicalScheduleOutsideReactionRejected(t *testing.T) {
	tl := New(nil, nil)
	err := tl.Schedule(time.Millisecond, func() error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLogicalCadenceReschedulesItself(t *testing.T) {
	tl := New(nil, nil)

	const period = 5 * time.Millisecond
	var ticks int
	var tick Reaction
	tick = func() error {
		ticks++
		if ticks >= 3 {
			tl.RequestStop(nil)
			return nil
		}
		return tl.Schedule(period, tick)
	}

	tl.AtStartup(func() error {
		return tl.Schedule(period, tick)
	})

	wait := runUntilStopped(t, tl)
	require.NoError(t, wait())
	assert.Equal(t, 3, ticks)
}

func TestStartupRunsBeforeAnyScheduledEvent(t *testing.T) {
	tl := New(nil, nil)

	var order []string
	tl.AtStartup(func() error {
		order = append(order, "startup")
		return tl.Schedule(0, func() error {
			order = append(order, "scheduled")
			tl.RequestStop(nil)
			return nil
		})
	})

	wait := runUntilStopped(t, tl)
	require.NoError(t, wait())
	assert.Equal(t, []string{"startup", "scheduled"}, order)
}

func TestFatalReactionHaltsWithError(t *testing.T) {
	tl := New(nil, nil)
	boom := errors.WrapFatal(errors.ErrInputAbsent, "task", "Infer", "input check")

	action := NewPhysical[struct{}](tl, "trigger")
	action.OnEvent(func(struct{}) error {
		return boom
	})

	wait := runUntilStopped(t, tl)
	action.Schedule(struct{}{})

	err := wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInputAbsent))
}

func TestTransientReactionDoesNotHalt(t *testing.T) {
	tl := New(nil, nil)

	action := NewPhysical[int](tl, "capture")
	var delivered []int
	action.OnEvent(func(v int) error {
		if v == 0 {
			return errors.WrapTransient(errors.ErrCaptureMiss, "camera", "capture", "frame read")
		}
		delivered = append(delivered, v)
		tl.RequestStop(nil)
		return nil
	})

	wait := runUntilStopped(t, tl)
	action.Schedule(0)
	action.Schedule(1)

	require.NoError(t, wait())
	assert.Equal(t, []int{1}, delivered, "pipeline continues past a transient miss")
}

func TestGracefulStopWinsOnlyIfFirst(t *testing.T) {
	tl := New(nil, nil)
	fatal := errors.WrapFatal(errors.ErrDevice, "camera", "Start", "open")

	tl.RequestStop(fatal)
	tl.RequestStop(nil)

	err := tl.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDevice))
}

func TestStepsCounted(t *testing.T) {
	tl := New(nil, nil)
	action := NewPhysical[int](tl, "e")
	action.OnEvent(func(v int) error {
		if v == 2 {
			tl.RequestStop(nil)
		}
		return nil
	})

	wait := runUntilStopped(t, tl)
	action.Schedule(1)
	time.Sleep(10 * time.Millisecond)
	action.Schedule(2)

	require.NoError(t, wait())
	// Startup step plus at least one event step.
	assert.GreaterOrEqual(t, tl.Steps(), uint64(2))
}

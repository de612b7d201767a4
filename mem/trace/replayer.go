package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cachewarm/mem/hierarchy"
)

// A ProgressTracker follows the events of a replay. Events are in progress
// from the moment they are queued until the worker of their core applies them.
type ProgressTracker interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// progressBatch bounds how many applied events a worker holds back before
// reporting them.
const progressBatch = 256

// A Replayer feeds the events of traces into a machine. Each core is simulated
// by its own goroutine, which is the only one that touches the hierarchy of
// the core.
type Replayer struct {
	machine     *hierarchy.Machine
	hierarchies []*hierarchy.Hierarchy
	bufferSize  int
	tracers     []Tracer
	progress    ProgressTracker

	replayed atomic.Uint64
}

// NewReplayer creates a replayer. The replayer claims all the cores of the
// machine the first time it replays a trace.
func NewReplayer(machine *hierarchy.Machine) *Replayer {
	return &Replayer{
		machine:    machine,
		bufferSize: 1024,
	}
}

// WithBufferSize sets how many events can wait for each core.
func (r *Replayer) WithBufferSize(n int) *Replayer {
	r.bufferSize = n
	return r
}

// WithProgress reports the progress of every replay to p.
func (r *Replayer) WithProgress(p ProgressTracker) *Replayer {
	r.progress = p
	return r
}

// AcceptTracer adds a tracer that sees every event before it is replayed.
func (r *Replayer) AcceptTracer(t Tracer) {
	r.tracers = append(r.tracers, t)
}

// Replayed returns the number of events replayed so far. It can be called
// while a replay is running.
func (r *Replayer) Replayed() uint64 {
	return r.replayed.Load()
}

func (r *Replayer) claim() error {
	if r.hierarchies != nil {
		return nil
	}

	hierarchies := make([]*hierarchy.Hierarchy, r.machine.NumCores())
	for i := range hierarchies {
		h, err := r.machine.Claim(i)
		if err != nil {
			return err
		}

		hierarchies[i] = h
	}

	r.hierarchies = hierarchies

	return nil
}

// Replay reads events until the end of the trace. When it returns, every
// event read has been applied and no worker is running, so the machine can be
// checkpointed.
func (r *Replayer) Replay(ctx context.Context, reader *Reader) error {
	err := r.claim()
	if err != nil {
		return err
	}

	queues := make([]chan Event, len(r.hierarchies))
	wg := sync.WaitGroup{}

	for i, h := range r.hierarchies {
		queues[i] = make(chan Event, r.bufferSize)

		wg.Add(1)

		go func(h *hierarchy.Hierarchy, queue <-chan Event) {
			defer wg.Done()

			var applied uint64

			for e := range queue {
				h.AccessBlock(e.Timestamp, e.BlockID, e.IsInstruction, e.IsWrite)
				r.replayed.Add(1)

				applied++
				if applied == progressBatch || len(queue) == 0 {
					r.reportFinished(applied)
					applied = 0
				}
			}

			r.reportFinished(applied)
		}(h, queues[i])
	}

	err = r.dispatch(ctx, reader, queues)

	for _, q := range queues {
		close(q)
	}

	wg.Wait()

	return err
}

func (r *Replayer) dispatch(
	ctx context.Context,
	reader *Reader,
	queues []chan Event,
) error {
	for {
		e, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if e.CoreID >= len(queues) {
			return fmt.Errorf("event of core %d, but the machine has %d cores",
				e.CoreID, len(queues))
		}

		for _, t := range r.tracers {
			t.Trace(e)
		}

		if r.progress != nil {
			r.progress.IncrementInProgress(1)
		}

		select {
		case queues[e.CoreID] <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Replayer) reportFinished(n uint64) {
	if r.progress == nil || n == 0 {
		return
	}

	r.progress.MoveInProgressToFinished(n)
}

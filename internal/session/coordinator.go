// Package session coordinates the single process-wide selection run, its
// observers, and the safe cleanup of transient storage.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/service"
)

// eventBuffer is the per-observer channel capacity. An observer that falls
// this far behind is treated as failed and detached.
const eventBuffer = 16

// Observer is a connected client interested in run lifecycle events.
// Observers never own the run state; they only watch it.
type Observer struct {
	events chan model.Event
}

// Events returns the channel lifecycle events arrive on. The channel is
// closed when the observer is detached.
func (o *Observer) Events() <-chan model.Event {
	return o.events
}

// RunHandle is the capability to finish the run it was issued for. Exactly
// one handle is outstanding process-wide while a run is active; a handle
// that has been cancelled or superseded rejects completion.
type RunHandle struct {
	c *Coordinator
}

// Coordinator is the state machine guarding the single active run. All
// mutations go through its methods; the Running state, not a caller-side
// lock, is what serializes pipeline executions.
type Coordinator struct {
	files             service.Storage
	observers         map[*Observer]struct{}
	current           *RunHandle
	lastEvent         *model.Event
	selection         model.Selection
	uploadsDir        string
	outputDir         string
	state             model.RunState
	mu                sync.Mutex
	generation        uint64
	hasResults        bool
	cleanupInProgress bool
}

// NewCoordinator creates an idle coordinator over the shared upload and
// output areas. Only the coordinator may authorize their deletion.
func NewCoordinator(files service.Storage, uploadsDir, outputDir string) *Coordinator {
	return &Coordinator{
		files:      files,
		observers:  make(map[*Observer]struct{}),
		uploadsDir: uploadsDir,
		outputDir:  outputDir,
		state:      model.RunStateIdle,
	}
}

// State returns the current run state.
func (c *Coordinator) State() model.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasResults reports whether a completed selection is being retained.
func (c *Coordinator) HasResults() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasResults
}

// Selection returns the retained selection from the last completed run, or
// nil if none exists.
func (c *Coordinator) Selection() model.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// StartRun transitions Idle/Completed/Cancelled/Failed to Running and
// returns the run handle. Fails with ErrAlreadyRunning while a run is
// active, leaving all state untouched.
func (c *Coordinator) StartRun() (*RunHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.RunStateRunning {
		return nil, common.ErrAlreadyRunning
	}

	handle := &RunHandle{c: c}
	c.current = handle
	c.state = model.RunStateRunning
	c.generation++
	c.broadcastLocked(model.Event{Status: model.StatusCategorizing})

	return handle, nil
}

// Complete stores the selection, marks results as retained, and broadcasts
// the completion event. Only the current handle of an active run may
// complete it; a stale completion (after Cancel or a later run) is rejected
// with ErrStaleRun and has no effect.
func (h *RunHandle) Complete(selection model.Selection) error {
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != h || c.state != model.RunStateRunning {
		return common.ErrStaleRun
	}

	c.current = nil
	c.state = model.RunStateCompleted
	c.selection = selection
	c.hasResults = true
	c.broadcastLocked(model.Event{Status: model.StatusComplete, Results: selection})

	return nil
}

// Cancel transitions the run to Cancelled and broadcasts the cancellation.
// The partial run status is cleared so late-joining observers see nothing
// from the dead run, but previously retained results stay retained. Calling
// Cancel on a stale handle is a no-op.
func (h *RunHandle) Cancel() {
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != h || c.state != model.RunStateRunning {
		return
	}

	c.current = nil
	c.state = model.RunStateCancelled
	c.broadcastLocked(model.Event{Status: model.StatusCancelled})
	c.lastEvent = nil
}

// Fail transitions the run to Failed and broadcasts an error event. The
// prior selection, if any, is left untouched so a failed re-run cannot
// destroy existing results. Stale handles are rejected with ErrStaleRun.
func (h *RunHandle) Fail(runErr error) error {
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != h || c.state != model.RunStateRunning {
		return common.ErrStaleRun
	}

	c.current = nil
	c.state = model.RunStateFailed
	c.broadcastLocked(model.Event{Status: model.StatusFailed, Error: runErr.Error()})

	return nil
}

// Clear cancels any active run, deletes the transient upload and output
// areas, drops retained results, returns to Idle and broadcasts the cleared
// event. Clear is valid from any state and idempotent. While another
// cleanup holds the in-progress flag the deletion is skipped silently; the
// state reset still happens. A run that starts while the deletion is in
// flight owns the state from then on: Clear leaves it running and skips
// the Idle reset.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()

	if c.state == model.RunStateRunning {
		c.current = nil
		c.state = model.RunStateCancelled
		c.broadcastLocked(model.Event{Status: model.StatusCancelled})
	}

	// Dropping retained results before the deletion keeps observers from
	// reading a selection whose files are being removed underneath them.
	c.hasResults = false
	c.selection = nil
	generation := c.generation

	doDelete := !c.cleanupInProgress
	if doDelete {
		c.cleanupInProgress = true
	}
	c.mu.Unlock()

	if doDelete {
		if err := c.files.ClearDir(ctx, c.uploadsDir); err != nil {
			slog.Warn("Failed to clear uploads", "dir", c.uploadsDir, "error", err)
		}
		if err := c.files.ClearDir(ctx, c.outputDir); err != nil {
			slog.Warn("Failed to clear output", "dir", c.outputDir, "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if doDelete {
		c.cleanupInProgress = false
	}

	// A StartRun during the deletion window bumps the generation; the new
	// run's state and events must not be stomped back to Idle here.
	if c.generation != generation {
		return nil
	}

	c.state = model.RunStateIdle
	c.broadcastLocked(model.Event{Status: model.StatusCleared})

	return nil
}

// Attach registers a new observer. If an event has been broadcast before,
// the observer immediately receives the most recent one, so late joiners
// converge on the current status without historical replay.
func (c *Coordinator) Attach() *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := &Observer{events: make(chan model.Event, eventBuffer)}
	c.observers[o] = struct{}{}

	if c.lastEvent != nil {
		select {
		case o.events <- *c.lastEvent:
		default:
			c.detachLocked(o)
		}
	}

	return o
}

// Detach removes an observer and closes its event channel. When the last
// observer leaves while no results are retained and no run is active, a
// best-effort cleanup of the transient upload area is triggered. Completed
// results and the output area are never touched by this path.
func (c *Coordinator) Detach(o *Observer) {
	c.mu.Lock()
	c.detachLocked(o)

	trigger := len(c.observers) == 0 &&
		!c.hasResults &&
		c.state != model.RunStateRunning &&
		!c.cleanupInProgress
	if trigger {
		c.cleanupInProgress = true
	}
	c.mu.Unlock()

	if trigger {
		go c.transientCleanup()
	}
}

// transientCleanup empties the upload scratch area. It runs detached from
// any request and releases the in-progress flag when done.
func (c *Coordinator) transientCleanup() {
	if err := c.files.ClearDir(context.Background(), c.uploadsDir); err != nil {
		slog.Warn("Transient cleanup failed", "dir", c.uploadsDir, "error", err)
	}

	c.mu.Lock()
	c.cleanupInProgress = false
	c.mu.Unlock()
}

// broadcastLocked records the event as the latest and fans it out. A send
// that would block marks that observer as failed; it is detached without
// aborting the remaining sends. Callers must hold c.mu.
func (c *Coordinator) broadcastLocked(event model.Event) {
	c.lastEvent = &event

	var failed []*Observer
	for o := range c.observers {
		select {
		case o.events <- event:
		default:
			failed = append(failed, o)
		}
	}

	for _, o := range failed {
		slog.Warn("Observer not keeping up, detaching")
		c.detachLocked(o)
	}
}

// detachLocked removes and closes an observer if still attached. Callers
// must hold c.mu.
func (c *Coordinator) detachLocked(o *Observer) {
	if _, ok := c.observers[o]; !ok {
		return
	}
	delete(c.observers, o)
	close(o.events)
}

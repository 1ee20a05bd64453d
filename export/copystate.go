package export

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tuition-receipts-go/models"
)

// ErrIllegalTransition is returned for a copy-state change the machine does
// not allow.
var ErrIllegalTransition = errors.New("illegal copy state transition")

// copyTransitions lists the allowed next states for each copy state.
var copyTransitions = map[models.CopyState][]models.CopyState{
	models.CopyIdle:    {models.CopyLoading},
	models.CopyLoading: {models.CopyCopied, models.CopyIdle},
	models.CopyCopied:  {models.CopyIdle},
}

func allowed(from, to models.CopyState) bool {
	for _, s := range copyTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CopyTracker holds the copy state of every student. Students without an
// entry are idle. A Copied state falls back to Idle after the copied window.
type CopyTracker struct {
	window time.Duration
	notify Notifier

	mu     sync.Mutex
	states map[models.StudentKey]models.CopyState
	timers map[models.StudentKey]*time.Timer
}

func NewCopyTracker(window time.Duration, notify Notifier) *CopyTracker {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &CopyTracker{
		window: window,
		notify: notify,
		states: make(map[models.StudentKey]models.CopyState),
		timers: make(map[models.StudentKey]*time.Timer),
	}
}

// State returns the copy state of key.
func (t *CopyTracker) State(key models.StudentKey) models.CopyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[key]
}

// States returns every non-idle state.
func (t *CopyTracker) States() map[models.StudentKey]models.CopyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[models.StudentKey]models.CopyState, len(t.states))
	for k, s := range t.states {
		out[k] = s
	}
	return out
}

// Begin moves key from Idle to Loading. It reports false, changing nothing,
// when a copy for key is already loading or was just copied.
func (t *CopyTracker) Begin(key models.StudentKey) bool {
	return t.transition(key, models.CopyLoading) == nil
}

// Succeed moves key from Loading to Copied and schedules the return to Idle.
func (t *CopyTracker) Succeed(key models.StudentKey) error {
	if err := t.transition(key, models.CopyCopied); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var timer *time.Timer
	timer = time.AfterFunc(t.window, func() {
		t.mu.Lock()
		current := t.timers[key] == timer
		if current {
			delete(t.timers, key)
		}
		t.mu.Unlock()
		if current {
			t.transition(key, models.CopyIdle)
		}
	})
	t.timers[key] = timer
	return nil
}

// Fail moves key from Loading back to Idle.
func (t *CopyTracker) Fail(key models.StudentKey) error {
	return t.transition(key, models.CopyIdle)
}

// Reset forgets every state, for a new ledger.
func (t *CopyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.states = make(map[models.StudentKey]models.CopyState)
	t.timers = make(map[models.StudentKey]*time.Timer)
}

func (t *CopyTracker) transition(key models.StudentKey, to models.CopyState) error {
	t.mu.Lock()
	from := t.states[key]
	if !allowed(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s for %s", ErrIllegalTransition, from, to, key)
	}
	if to == models.CopyIdle {
		delete(t.states, key)
	} else {
		t.states[key] = to
	}
	t.mu.Unlock()

	state := to
	t.notify.Notify(models.Event{Type: models.EventCopyState, Key: key, State: &state})
	return nil
}

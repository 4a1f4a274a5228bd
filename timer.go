package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	WorldTimersMax = 5
	BodyTimersMax  = 10
)

// TimerFunc runs once when its timer is due.
type TimerFunc func(w *World) error

// Timer fires once world time (step number times step duration) reaches When.
type Timer struct {
	When float64
	fn   TimerFunc
}

func (t *Timer) active() bool {
	return t.fn != nil
}

func addTimer(timers []Timer, when float64, fn TimerFunc) error {
	if fn == nil {
		return errors.New("timer without a function").
			WithType(ErrTypeInvalidConfig)
	}
	for i := range timers {
		if !timers[i].active() {
			timers[i] = Timer{When: when, fn: fn}
			return nil
		}
	}
	return errors.New("no free timer slots").
		WithType(ErrTypeTooManyTimers).
		WithTag("max", len(timers))
}

// runTimers removes the due timers before running any of them, so a timer
// function can destroy the timer owner or add new timers.
func runTimers(w *World, timers []Timer, now float64) {
	var due [BodyTimersMax]TimerFunc
	n := 0
	for i := range timers {
		if !timers[i].active() || timers[i].When > now {
			continue
		}
		due[n] = timers[i].fn
		n++
		timers[i] = Timer{}
	}

	for _, fn := range due[:n] {
		if err := fn(w); err != nil {
			fatal(errors.New("timer function failed").
				WithType(ErrTypeCallbackFailed).
				WithTag("world", w.name).
				WithTag("step", w.step).
				Wrap(err))
		}
	}
}

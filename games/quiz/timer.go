package quiz

import "time"

type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d. The engine never calls f's work directly
// from the scheduler goroutine; f only posts back into the engine inbox.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Timers keeps at most one live question-end timer per room.
type Timers struct {
	sched Scheduler
}

func NewTimers(sched Scheduler) Timers {
	if sched == nil {
		sched = clockScheduler{}
	}

	return Timers{sched: sched}
}

// ScheduleQuestionEnd replaces the room's pending timer with one that calls
// onExpire for index after d. onExpire runs on the scheduler's goroutine and
// must re-check the room with Room.OnQuestion before acting.
func (t Timers) ScheduleQuestionEnd(r *Room, index int, d time.Duration, onExpire func(r *Room, index int)) {
	t.Cancel(r)

	r.pending = t.sched.AfterFunc(d, func() {
		onExpire(r, index)
	})
}

func (t Timers) Cancel(r *Room) {
	r.cancelTimer()
}

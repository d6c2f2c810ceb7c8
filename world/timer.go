package world

import "time"

// TimerHandle identifies a pending single-shot timer. The zero value is an
// unset handle.
type TimerHandle struct {
	id uint64
}

// Active reports whether the handle points at a pending timer.
func (h *TimerHandle) Active() bool { return h != nil && h.id != 0 }

type timer struct {
	id     uint64
	due    time.Duration
	seq    uint64
	actor  *Actor
	handle *TimerHandle
	fn     func()
}

// SetTimer arms a single-shot timer for a after delay. Arming a handle that
// is already pending replaces the earlier schedule. Repeating behavior is
// built by re-arming from inside fn.
func (w *World) SetTimer(a *Actor, h *TimerHandle, delay time.Duration, fn func()) {
	w.ClearTimer(h)
	w.timerID++
	w.seq++
	h.id = w.timerID
	w.timers = append(w.timers, &timer{
		id:     h.id,
		due:    w.now + delay,
		seq:    w.seq,
		actor:  a,
		handle: h,
		fn:     fn,
	})
}

// ClearTimer cancels the pending timer of h, if any.
func (w *World) ClearTimer(h *TimerHandle) {
	if !h.Active() {
		return
	}
	for i, t := range w.timers {
		if t.id == h.id {
			w.timers = append(w.timers[:i], w.timers[i+1:]...)
			break
		}
	}
	h.id = 0
}

// PendingTimers counts armed timers.
func (w *World) PendingTimers() int { return len(w.timers) }

// nextDue removes and returns the earliest timer due at or before limit.
func (w *World) nextDue(limit time.Duration) *timer {
	best := -1
	for i, t := range w.timers {
		if t.due > limit {
			continue
		}
		if best < 0 || t.due < w.timers[best].due || (t.due == w.timers[best].due && t.seq < w.timers[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := w.timers[best]
	w.timers = append(w.timers[:best], w.timers[best+1:]...)
	return t
}

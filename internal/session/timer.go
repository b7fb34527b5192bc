package session

// Warning thresholds, in seconds remaining.
var warnThresholds = []int{300, 60}

// Timer is a one-second-resolution countdown. It is driven by Tick and is not
// safe for concurrent use; the Loop serializes all calls.
type Timer struct {
	remaining int
	running   bool
	onExpire  func()
	onWarning func(remaining int)
}

// NewTimer returns a stopped timer. onWarning may be nil.
func NewTimer(onWarning func(remaining int)) *Timer {
	return &Timer{onWarning: onWarning}
}

// Start begins counting down from totalSeconds. onExpire runs exactly once,
// on the tick that reaches zero. A non-positive total expires on the first tick.
func (t *Timer) Start(totalSeconds int, onExpire func()) {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	t.remaining = totalSeconds
	t.onExpire = onExpire
	t.running = true
}

// Tick advances the countdown by one second.
func (t *Timer) Tick() {
	if !t.running {
		return
	}
	if t.remaining > 0 {
		t.remaining--
	}

	if t.remaining > 0 {
		if t.onWarning != nil {
			for _, th := range warnThresholds {
				if t.remaining == th {
					t.onWarning(th)
				}
			}
		}
		return
	}

	t.running = false
	expire := t.onExpire
	t.onExpire = nil
	if expire != nil {
		expire()
	}
}

// Stop halts the countdown. Calling it again, or after expiry, is a no-op.
func (t *Timer) Stop() {
	t.running = false
	t.onExpire = nil
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int { return t.remaining }

// Running reports whether the countdown is active.
func (t *Timer) Running() bool { return t.running }

package scheduler

import "time"

// Estimator predicts the cost of the next task from the costs observed so
// far.
type Estimator interface {
	Observe(d time.Duration)
	Estimate() time.Duration
}

// RunningAverage is the arithmetic mean of every observed cost.
type RunningAverage struct {
	n   int64
	avg float64
}

// Observe implements Estimator.
func (r *RunningAverage) Observe(d time.Duration) {
	r.n++
	r.avg += (float64(d) - r.avg) / float64(r.n)
}

// Estimate implements Estimator.
func (r *RunningAverage) Estimate() time.Duration { return time.Duration(r.avg) }

// EMA is an exponential moving average. Alpha in (0, 1] is the weight of the
// newest sample; the first sample seeds the average.
type EMA struct {
	Alpha  float64
	seeded bool
	avg    float64
}

// Observe implements Estimator.
func (e *EMA) Observe(d time.Duration) {
	if !e.seeded {
		e.avg, e.seeded = float64(d), true
		return
	}
	e.avg = e.Alpha*float64(d) + (1-e.Alpha)*e.avg
}

// Estimate implements Estimator.
func (e *EMA) Estimate() time.Duration { return time.Duration(e.avg) }

// AdaptiveOption configures an Adaptive scheduler.
type AdaptiveOption func(*Adaptive)

// WithBudget sets the time one flush may spend. Defaults to
// DefaultFrameBudget.
func WithBudget(d time.Duration) AdaptiveOption {
	return func(a *Adaptive) { a.budget = d }
}

// WithEstimator replaces the default running average.
func WithEstimator(e Estimator) AdaptiveOption {
	return func(a *Adaptive) { a.est = e }
}

// WithSmoothing switches to an exponential moving average with the given
// weight for new samples.
func WithSmoothing(alpha float64) AdaptiveOption {
	return func(a *Adaptive) { a.est = &EMA{Alpha: alpha} }
}

// Adaptive drains tasks in FIFO order until the estimated cost of the next
// task would overrun the frame. It always runs at least one task per flush.
// Remaining tasks stay queued, in order, for a new frame.
type Adaptive struct {
	gate    frameGate
	clock   Clock
	budget  time.Duration
	est     Estimator
	queue   []job
	flushes int
}

// NewAdaptive creates an adaptive scheduler. clock measures task cost; nil
// means the wall clock.
func NewAdaptive(frames FrameRequester, clock Clock, opts ...AdaptiveOption) *Adaptive {
	if clock == nil {
		clock = SystemClock{}
	}
	a := &Adaptive{
		gate:   frameGate{frames: frames},
		clock:  clock,
		budget: DefaultFrameBudget,
		est:    &RunningAverage{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schedule implements Scheduler.
func (a *Adaptive) Schedule(key any, task Task) func(any) {
	return func(v any) {
		a.queue = append(a.queue, job{key: key, task: task, value: v})
		a.gate.request(a.flush)
	}
}

// Pending implements Scheduler.
func (a *Adaptive) Pending() int { return len(a.queue) }

// Estimate returns the current per-task cost estimate.
func (a *Adaptive) Estimate() time.Duration { return a.est.Estimate() }

// Flushes returns how many frames have been flushed.
func (a *Adaptive) Flushes() int { return a.flushes }

func (a *Adaptive) flush(deadline time.Time) {
	a.flushes++
	start := a.clock.Now()
	if limit := start.Add(a.budget); deadline.IsZero() || limit.Before(deadline) {
		deadline = limit
	}

	ran := 0
	for len(a.queue) > 0 {
		now := a.clock.Now()
		if ran > 0 && now.Add(a.est.Estimate()).After(deadline) {
			break
		}
		j := a.queue[0]
		a.queue[0] = job{}
		a.queue = a.queue[1:]
		if !alive(j.key) {
			continue
		}
		j.task(j.value)
		a.est.Observe(a.clock.Now().Sub(now))
		ran++
	}

	if len(a.queue) > 0 {
		a.gate.request(a.flush)
	}
}

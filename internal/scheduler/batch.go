package scheduler

import "time"

// Batch runs every queued task in one flush per frame, in queue order,
// regardless of the frame budget.
type Batch struct {
	gate  frameGate
	queue []job
}

// NewBatch creates a batch scheduler driven by frames.
func NewBatch(frames FrameRequester) *Batch {
	return &Batch{gate: frameGate{frames: frames}}
}

// Schedule implements Scheduler.
func (b *Batch) Schedule(key any, task Task) func(any) {
	return func(v any) {
		b.queue = append(b.queue, job{key: key, task: task, value: v})
		b.gate.request(b.flush)
	}
}

// Pending implements Scheduler.
func (b *Batch) Pending() int { return len(b.queue) }

func (b *Batch) flush(time.Time) {
	jobs := b.queue
	b.queue = nil
	for i := range jobs {
		jobs[i].run()
		jobs[i] = job{}
	}
}

// Debounce keeps only the latest task per key. A key keeps the queue
// position of its first registration within the frame; later registrations
// replace its task and value.
type Debounce struct {
	gate  frameGate
	order []any
	jobs  map[any]job
}

// NewDebounce creates a per-key debouncing scheduler. Keys must be
// comparable.
func NewDebounce(frames FrameRequester) *Debounce {
	return &Debounce{gate: frameGate{frames: frames}, jobs: make(map[any]job)}
}

// Schedule implements Scheduler.
func (d *Debounce) Schedule(key any, task Task) func(any) {
	return func(v any) {
		if _, ok := d.jobs[key]; !ok {
			d.order = append(d.order, key)
		}
		d.jobs[key] = job{key: key, task: task, value: v}
		d.gate.request(d.flush)
	}
}

// Pending implements Scheduler.
func (d *Debounce) Pending() int { return len(d.jobs) }

func (d *Debounce) flush(time.Time) {
	order, jobs := d.order, d.jobs
	d.order, d.jobs = nil, make(map[any]job)
	for _, k := range order {
		jobs[k].run()
	}
}

package preload

import (
	"sync"
	"time"
)

// DefaultProgressInterval is the minimum wall-clock gap between progress callbacks.
const DefaultProgressInterval = 100 * time.Millisecond

// bytesPerMB converts byte counts for reporting (decimal megabytes).
const bytesPerMB = 1e6

// ProgressFunc receives global download progress.
// percent is 0-100 (0 while the total is unknown), speed is MB/s.
type ProgressFunc func(percent, speedMBps, loadedMB, totalMB float64)

// Progress is a point-in-time view of a batch download.
type Progress struct {
	Loaded  int64         // Bytes received across all assets
	Total   int64         // Sum of declared lengths, 0 when unknown
	Elapsed time.Duration // Since the aggregator started
}

// Percent returns Loaded/Total*100, or 0 when Total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Loaded) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// SpeedMBps returns the average throughput since start.
func (p Progress) SpeedMBps() float64 {
	secs := p.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return (float64(p.Loaded) / bytesPerMB) / secs
}

// LoadedMB returns Loaded in megabytes.
func (p Progress) LoadedMB() float64 { return float64(p.Loaded) / bytesPerMB }

// TotalMB returns Total in megabytes.
func (p Progress) TotalMB() float64 { return float64(p.Total) / bytesPerMB }

// throttle admits at most one event per interval.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func (t *throttle) allow(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) <= t.interval {
		return false
	}
	t.last = now
	return true
}

// Aggregator is the single shared byte counter for a batch.
// Every tracker reports into the same Aggregator; increments and callbacks
// are serialized, so a callback never observes a torn total.
// Callbacks must not call back into the Aggregator.
type Aggregator struct {
	mu     sync.Mutex
	loaded int64
	total  int64
	start  time.Time
	now    func() time.Time
	gate   throttle
	emit   ProgressFunc
	calls  int
}

// NewAggregator creates an aggregator for a batch of the given total size.
// total <= 0 means unknown. A nil now uses time.Now; a nil emit disables callbacks.
func NewAggregator(total int64, interval time.Duration, now func() time.Time, emit ProgressFunc) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if total < 0 {
		total = 0
	}
	return &Aggregator{
		total: total,
		start: now(),
		now:   now,
		gate:  throttle{interval: interval},
		emit:  emit,
	}
}

// Add records n more bytes and emits a callback if the rate window allows.
func (a *Aggregator) Add(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loaded += int64(n)
	now := a.now()
	if a.emit == nil || !a.gate.allow(now) {
		return
	}
	p := a.progressAt(now)
	a.calls++
	a.emit(p.Percent(), p.SpeedMBps(), p.LoadedMB(), p.TotalMB())
}

// Finish emits the final callback pinned at 100%.
func (a *Aggregator) Finish() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.progressAt(a.now())
	if a.emit != nil {
		a.calls++
		a.emit(100, p.SpeedMBps(), p.LoadedMB(), p.TotalMB())
	}
	return p
}

// Snapshot returns the current progress.
func (a *Aggregator) Snapshot() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progressAt(a.now())
}

// Callbacks returns how many progress callbacks have been emitted.
func (a *Aggregator) Callbacks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Aggregator) progressAt(now time.Time) Progress {
	return Progress{
		Loaded:  a.loaded,
		Total:   a.total,
		Elapsed: now.Sub(a.start),
	}
}

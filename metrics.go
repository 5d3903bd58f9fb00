package winloop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of runtime statistics, see [EventLoop.Metrics].
type Metrics struct {
	// Wait is the distribution of time spent blocked in the native wait.
	Wait LatencySnapshot

	// Iterations counts completed iterations, including the Init iteration.
	Iterations uint64

	// SpuriousWakeups counts WaitCancelled wake-ups suppressed because they
	// produced no events.
	SpuriousWakeups uint64

	// NotifierPings counts wake-ups issued by the pump notifier.
	NotifierPings uint64

	// Redraws counts delivered RedrawRequested events.
	Redraws uint64
}

// LatencySnapshot holds percentiles computed over the most recent samples.
type LatencySnapshot struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// loopMetrics is the live, thread-safe counterpart of Metrics.
type loopMetrics struct {
	wait            latencyMetrics
	iterations      atomic.Uint64
	spuriousWakeups atomic.Uint64
	notifierPings   atomic.Uint64
	redraws         atomic.Uint64
}

func (m *loopMetrics) snapshot() Metrics {
	return Metrics{
		Wait:            m.wait.sample(),
		Iterations:      m.iterations.Load(),
		SpuriousWakeups: m.spuriousWakeups.Load(),
		NotifierPings:   m.notifierPings.Load(),
		Redraws:         m.redraws.Load(),
	}
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 512

// latencyMetrics is a rolling buffer of latency samples.
type latencyMetrics struct {
	samples     [sampleSize]time.Duration
	sum         time.Duration
	sampleIdx   int
	sampleCount int
	mu          sync.Mutex
}

// record records a latency sample.
func (l *latencyMetrics) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// If buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = d
	l.sum += d
	l.sampleIdx = (l.sampleIdx + 1) % sampleSize
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// sample computes percentiles from the collected samples.
func (l *latencyMetrics) sample() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return LatencySnapshot{}
	}

	sorted := slices.Clone(l.samples[:count])
	slices.Sort(sorted)

	return LatencySnapshot{
		P50:   sorted[percentileIndex(count, 50)],
		P90:   sorted[percentileIndex(count, 90)],
		P99:   sorted[percentileIndex(count, 99)],
		Max:   sorted[count-1],
		Mean:  l.sum / time.Duration(count),
		Count: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

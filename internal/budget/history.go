// Package budget tracks the active-time budget of an upload session and
// estimates per-file transfer times from smoothed historical throughput.
package budget

import "time"

// DefaultRateBytesPerSec is the assumed throughput before any transfer has
// been observed: 40 KB/s, a conservative figure for SMB over Wi-Fi.
const DefaultRateBytesPerSec = 40 * 1024

// historySize bounds the throughput history; old samples age out FIFO so the
// estimate follows current network conditions.
const historySize = 5

type sample struct {
	bytes   int64
	elapsed time.Duration
}

// RateHistory is a bounded FIFO of observed (bytes, elapsed) transfer samples.
// The zero value is ready to use.
type RateHistory struct {
	samples []sample
}

// Record appends a transfer observation. Samples with a non-positive elapsed
// time are discarded: they carry no rate information and would poison the
// average. The oldest sample is evicted once the history holds historySize
// entries.
func (h *RateHistory) Record(bytes int64, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	h.samples = append(h.samples, sample{bytes: bytes, elapsed: elapsed})
	if len(h.samples) > historySize {
		h.samples = h.samples[1:]
	}
}

// Average returns the mean of the per-sample throughput ratios in bytes per
// second, or DefaultRateBytesPerSec when no samples have been recorded. The
// mean is unweighted by transfer size so an isolated fast or slow outlier
// cannot dominate.
func (h *RateHistory) Average() float64 {
	if len(h.samples) == 0 {
		return DefaultRateBytesPerSec
	}
	var sum float64
	for _, s := range h.samples {
		sum += float64(s.bytes) / s.elapsed.Seconds()
	}
	return sum / float64(len(h.samples))
}

// Len reports how many samples are currently retained.
func (h *RateHistory) Len() int { return len(h.samples) }

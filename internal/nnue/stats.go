package nnue

import "sync/atomic"

// DebugStats gates the refresh/update counters below. Off by default so the
// hot evaluation path never pays for an atomic increment it doesn't need.
var DebugStats = false

var (
	refreshCount uint64
	updateCount  uint64
)

func recordRefresh() {
	if DebugStats {
		atomic.AddUint64(&refreshCount, 1)
	}
}

func recordUpdate() {
	if DebugStats {
		atomic.AddUint64(&updateCount, 1)
	}
}

// Stats reports the accumulator refresh/update counts seen since the last
// ResetStats call (or process start). Only meaningful when DebugStats is on.
func Stats() (refreshes, updates uint64) {
	return atomic.LoadUint64(&refreshCount), atomic.LoadUint64(&updateCount)
}

// ResetStats zeroes the counters.
func ResetStats() {
	atomic.StoreUint64(&refreshCount, 0)
	atomic.StoreUint64(&updateCount, 0)
}

package livemetrics

import "sync/atomic"

// countDurationCell packs a (count, summed-duration-ms) pair into one
// 64-bit word so both fields can be updated atomically with a single CAS:
// the low 40 bits hold the count (room for ~1e12 events, unreachable in
// one window per spec §3), the high 24 bits hold the summed millisecond
// duration, saturating rather than wrapping on overflow.
type countDurationCell struct {
	word uint64
}

const (
	countBits    = 40
	countMask    = (uint64(1) << countBits) - 1
	durationMask = uint64(1)<<24 - 1
)

func pack(count, duration uint64) uint64 {
	return (count & countMask) | ((duration & durationMask) << countBits)
}

func unpack(word uint64) (count, duration uint64) {
	return word & countMask, (word >> countBits) & durationMask
}

// add records one event with the given non-negative duration in
// milliseconds, retrying the CAS loop on contention.
func (c *countDurationCell) add(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	for {
		old := atomic.LoadUint64(&c.word)
		count, duration := unpack(old)

		count++ // programming error if this ever wraps past 40 bits

		newDuration := duration + uint64(durationMs)
		if newDuration > durationMask {
			newDuration = durationMask // saturate, never wrap
		}

		newWord := pack(count, newDuration)
		if atomic.CompareAndSwapUint64(&c.word, old, newWord) {
			return
		}
	}
}

// snapshotAndReset atomically swaps the cell to zero and returns the
// pre-swap decoded values.
func (c *countDurationCell) snapshotAndReset() (count, durationMs uint64) {
	old := atomic.SwapUint64(&c.word, 0)
	return unpack(old)
}

// peek decodes the cell without resetting it.
func (c *countDurationCell) peek() (count, durationMs uint64) {
	return unpack(atomic.LoadUint64(&c.word))
}

// Counters accumulates per-window request, dependency, and exception
// counts with a lock-free CAS update on each (count, duration) pair
// (spec §4.1). Cells are independent: a caller may observe two cells a
// few microseconds apart, but each cell's own count/sum pair is always
// internally consistent.
type Counters struct {
	requests   countDurationCell
	rdds       countDurationCell
	exceptions uint64 // plain atomic counter, no duration to pack
	unsuccReq  uint64
	unsuccRdd  uint64
}

// RecordRequest truncates durationMs to a non-negative value and updates
// the request counter pair, plus the unsuccessful-request counter when
// success is false.
func (c *Counters) RecordRequest(durationMs int64, success bool) {
	c.requests.add(durationMs)
	if !success {
		atomic.AddUint64(&c.unsuccReq, 1)
	}
}

// RecordDependency mirrors RecordRequest for remote-dependency telemetry.
func (c *Counters) RecordDependency(durationMs int64, success bool) {
	c.rdds.add(durationMs)
	if !success {
		atomic.AddUint64(&c.unsuccRdd, 1)
	}
}

// RecordException increments the exception counter.
func (c *Counters) RecordException() {
	atomic.AddUint64(&c.exceptions, 1)
}

// CounterSnapshot is the decoded scalar view of one Counters instance.
type CounterSnapshot struct {
	Requests             uint64
	UnsuccessfulRequests uint64
	RequestsDuration     uint64
	Rdds                 uint64
	UnsuccessfulRdds     uint64
	RddsDuration         uint64
	Exceptions           uint64
}

// SnapshotAndReset atomically swaps every cell to zero and returns the
// pre-swap decoded counters (spec §4.1).
func (c *Counters) SnapshotAndReset() CounterSnapshot {
	reqCount, reqDur := c.requests.snapshotAndReset()
	rddCount, rddDur := c.rdds.snapshotAndReset()

	return CounterSnapshot{
		Requests:             reqCount,
		UnsuccessfulRequests: atomic.SwapUint64(&c.unsuccReq, 0),
		RequestsDuration:     reqDur,
		Rdds:                 rddCount,
		UnsuccessfulRdds:     atomic.SwapUint64(&c.unsuccRdd, 0),
		RddsDuration:         rddDur,
		Exceptions:           atomic.SwapUint64(&c.exceptions, 0),
	}
}

// Peek returns a non-destructive decoded view (spec §4.2).
func (c *Counters) Peek() CounterSnapshot {
	reqCount, reqDur := c.requests.peek()
	rddCount, rddDur := c.rdds.peek()

	return CounterSnapshot{
		Requests:             reqCount,
		UnsuccessfulRequests: atomic.LoadUint64(&c.unsuccReq),
		RequestsDuration:     reqDur,
		Rdds:                 rddCount,
		UnsuccessfulRdds:     atomic.LoadUint64(&c.unsuccRdd),
		RddsDuration:         rddDur,
		Exceptions:           atomic.LoadUint64(&c.exceptions),
	}
}

package livemetrics

import "sync/atomic"

// SubscriptionState reflects whether the remote service currently wants
// per-second posts (ON) or only ping keep-alives (OFF). The Coordinator
// is the single writer; the Collector is the single reader — a plain
// atomic value suffices (spec §5).
type SubscriptionState int32

const (
	QPIsOff SubscriptionState = iota
	QPIsOn
)

func (s SubscriptionState) String() string {
	if s == QPIsOn {
		return "QP_IS_ON"
	}
	return "QP_IS_OFF"
}

type subscriptionFlag struct {
	value atomic.Int32
}

func (f *subscriptionFlag) set(s SubscriptionState) {
	f.value.Store(int32(s))
}

func (f *subscriptionFlag) get() SubscriptionState {
	return SubscriptionState(f.value.Load())
}

package ledger

// LockOrder returns two account ids in the order their row locks must be
// acquired: ascending by user id, independent of which side is the sender.
// Any two operations contending for the same pair therefore request the
// lower id first, so no operation can hold the higher lock while waiting on
// the lower one and lock waits cannot form a cycle.
//
// Every multi-account code path goes through this function; callers must
// reject identical ids before asking for an order.
func LockOrder(a, b uint64) (first, second uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

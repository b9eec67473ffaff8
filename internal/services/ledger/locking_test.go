package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockOrderIsArgumentOrderIndependent(t *testing.T) {
	tests := []struct {
		name       string
		a, b       uint64
		wantFirst  uint64
		wantSecond uint64
	}{
		{"ascending input", 1, 2, 1, 2},
		{"descending input", 2, 1, 1, 2},
		{"large ids", 9_000_000_000, 7, 7, 9_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := LockOrder(tt.a, tt.b)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantSecond, second)

			// Swapping the arguments must not change the order.
			swappedFirst, swappedSecond := LockOrder(tt.b, tt.a)
			assert.Equal(t, first, swappedFirst)
			assert.Equal(t, second, swappedSecond)
		})
	}
}

func TestEntryClockNeverGoesBackwards(t *testing.T) {
	var clock entryClock
	prev := clock.Now()
	for i := 0; i < 1000; i++ {
		now := clock.Now()
		assert.False(t, now.Before(prev))
		prev = now
	}
	assert.Equal(t, time.UTC, prev.Location())
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowUpToQuotaThenRejects(t *testing.T) {
	l := New(map[Class]int{"start": 10}, time.Minute)

	for i := 1; i <= 10; i++ {
		ok, _ := l.Allow("start", "client-a")
		assert.True(t, ok, "request %d should be within quota", i)
	}

	ok, retryAfter := l.Allow("start", "client-a")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)
}

func TestQuotasAreIndependentPerKey(t *testing.T) {
	l := New(map[Class]int{"start": 1}, time.Minute)

	ok, _ := l.Allow("start", "client-a")
	assert.True(t, ok)

	ok, _ = l.Allow("start", "client-b")
	assert.True(t, ok, "a different source key should have its own quota")
}

func TestUnconfiguredClassIsUnlimited(t *testing.T) {
	l := New(map[Class]int{"start": 1}, time.Minute)
	for i := 0; i < 50; i++ {
		ok, _ := l.Allow("health", "anyone")
		assert.True(t, ok)
	}
}

func TestWindowResetsAfterPeriod(t *testing.T) {
	l := New(map[Class]int{"start": 1}, 20*time.Millisecond)

	ok, _ := l.Allow("start", "client-a")
	assert.True(t, ok)

	ok, _ = l.Allow("start", "client-a")
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, _ = l.Allow("start", "client-a")
	assert.True(t, ok, "quota should reset once the window elapses")
}

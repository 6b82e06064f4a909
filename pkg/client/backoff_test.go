package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffStaysWithinCap(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, backoffCap+time.Millisecond)
	}
}

func TestBackoffEarlyAttemptsAreShort(t *testing.T) {
	b := NewBackoff()
	// First delay is drawn from (0, base].
	assert.LessOrEqual(t, b.Next(), backoffBase+time.Millisecond)
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 10; i++ {
		b.Next()
	}
	b.Reset()
	assert.LessOrEqual(t, b.Next(), backoffBase+time.Millisecond)
}

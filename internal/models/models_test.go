package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuadrantFor(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want string
	}{
		{"top right", Position{X: 0.9, Y: 0.9}, QuadrantTopRight},
		{"top left", Position{X: 0.1, Y: 0.9}, QuadrantTopLeft},
		{"bottom right", Position{X: 0.9, Y: 0.1}, QuadrantBottomRight},
		{"bottom left", Position{X: 0.1, Y: 0.1}, QuadrantBottomLeft},
		{"midpoint belongs to top right", Position{X: 0.5, Y: 0.5}, QuadrantTopRight},
		{"x boundary", Position{X: 0.5, Y: 0.1}, QuadrantBottomRight},
		{"y boundary", Position{X: 0.1, Y: 0.5}, QuadrantTopLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuadrantFor(tt.pos))
		})
	}
}

func TestPositionClamp(t *testing.T) {
	assert.Equal(t, Position{X: 0, Y: 1}, Position{X: -3.5, Y: 42}.Clamp())
	assert.Equal(t, Position{X: 0.25, Y: 0.75}, Position{X: 0.25, Y: 0.75}.Clamp())
	assert.Equal(t, Position{X: 0, Y: 0}, Position{}.Clamp())
}

func TestActivitySlotAllowed(t *testing.T) {
	limited := Activity{MaxEntries: 3}
	assert.True(t, limited.SlotAllowed(1))
	assert.True(t, limited.SlotAllowed(3))
	assert.False(t, limited.SlotAllowed(4))
	assert.False(t, limited.SlotAllowed(0))
	assert.False(t, limited.SlotAllowed(-1))

	unlimited := Activity{MaxEntries: 0}
	assert.True(t, unlimited.SlotAllowed(1))
	assert.True(t, unlimited.SlotAllowed(10000))
	assert.False(t, unlimited.SlotAllowed(0))
}

func TestActivityAcceptsSubmissions(t *testing.T) {
	assert.False(t, (&Activity{Status: StatusDraft}).AcceptsSubmissions())
	assert.True(t, (&Activity{Status: StatusActive}).AcceptsSubmissions())
	assert.False(t, (&Activity{Status: StatusCompleted}).AcceptsSubmissions())
}

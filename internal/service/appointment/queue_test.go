package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateSlot(t *testing.T) {
	e := DefaultQueueEstimator()

	tests := []struct {
		ahead int
		want  string
	}{
		{0, "09:00"},
		{1, "09:15"},
		{2, "09:30"},
		{3, "09:45"},
		{4, "10:00"},
		{12, "12:00"},
		{39, "18:45"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.EstimateSlot(tt.ahead))
	}
}

func TestEstimateSlotCustomClinic(t *testing.T) {
	e := NewQueueEstimator(8, 30, 20)

	assert.Equal(t, "08:30", e.EstimateSlot(0))
	assert.Equal(t, "08:50", e.EstimateSlot(1))
	assert.Equal(t, "09:10", e.EstimateSlot(2))
}

func TestEstimateSlotRejectsBadSlotLength(t *testing.T) {
	e := NewQueueEstimator(9, 0, 0)
	assert.Equal(t, "09:15", e.EstimateSlot(1))
}

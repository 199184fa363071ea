package appointment

import "fmt"

// Queue estimation defaults: the clinic opens at 09:00 and each patient
// is allotted a fixed slot.
const (
	DefaultOpeningHour   = 9
	DefaultOpeningMinute = 0
	DefaultSlotMinutes   = 15
)

// QueueEstimator computes the advisory consultation time for a queue
// position. No working-hours calendar is modeled; any date is accepted.
type QueueEstimator struct {
	openingHour   int
	openingMinute int
	slotMinutes   int
}

func NewQueueEstimator(openingHour, openingMinute, slotMinutes int) *QueueEstimator {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	return &QueueEstimator{
		openingHour:   openingHour,
		openingMinute: openingMinute,
		slotMinutes:   slotMinutes,
	}
}

func DefaultQueueEstimator() *QueueEstimator {
	return NewQueueEstimator(DefaultOpeningHour, DefaultOpeningMinute, DefaultSlotMinutes)
}

// EstimateSlot returns the HH:MM estimate for a patient with the given
// number of patients ahead of them.
func (e *QueueEstimator) EstimateSlot(ahead int) string {
	totalMinutes := e.openingMinute + ahead*e.slotMinutes
	hour := e.openingHour + totalMinutes/60
	minute := totalMinutes % 60
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

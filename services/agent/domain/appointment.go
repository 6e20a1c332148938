package domain

import "time"

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch AppointmentStatus(s) {
	case AppointmentBooked, AppointmentCancelled:
		return AppointmentStatus(s), true
	default:
		return "", false
	}
}

// SlotDuration is the fixed length of every appointment. The calendar is a
// single shared resource of one-hour slots.
const SlotDuration = time.Hour

type Appointment struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Status      AppointmentStatus `json:"status"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SlotWindow returns the [start, start+1h) window for a slot starting at start.
func SlotWindow(start time.Time) (time.Time, time.Time) {
	return start, start.Add(SlotDuration)
}

// DayWindow returns the inclusive [00:00:00, 23:59:59] bounds of the
// calendar day containing day, in day's location.
func DayWindow(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	return start, end
}

// Package receptionist implements the conversational tool surface of the
// scheduling assistant. Each operation is independently invocable by the
// language model, executes against the appointment store when one is
// configured, and returns a single sentence ready for speech synthesis.
package receptionist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
	"github.com/kairosvoice/kairos-agent/pkg/speech"
	"github.com/kairosvoice/kairos-agent/services/agent/domain"
	"github.com/kairosvoice/kairos-agent/services/agent/repository"
	"github.com/kairosvoice/kairos-agent/services/agent/session"
	"github.com/kairosvoice/kairos-agent/services/agent/ui"
)

// Store groups the repositories the receptionist needs. A nil *Store puts
// the receptionist in degraded mode: every operation still answers
// plausibly, it just doesn't persist anything.
type Store struct {
	Users        repository.UserRepository
	Appointments repository.AppointmentRepository
	Logs         repository.ConversationLogRepository
}

// Receptionist handles one call. It owns the call's session state; create
// a fresh Receptionist per call.
type Receptionist struct {
	store *Store
	uiPub *ui.Publisher
	bus   events.Publisher
	state *session.State
	now   func() time.Time
}

// Option configures a Receptionist.
type Option func(*Receptionist)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Receptionist) { r.now = now }
}

// New creates a Receptionist. store and bus may be nil.
func New(store *Store, uiPub *ui.Publisher, bus events.Publisher, opts ...Option) *Receptionist {
	r := &Receptionist{
		store: store,
		uiPub: uiPub,
		bus:   bus,
		state: session.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State exposes the call's session state, used at call teardown.
func (r *Receptionist) State() *session.State {
	return r.state
}

// IdentifyUser looks up a caller by phone number. It never creates a user;
// unknown callers get a friendly not-on-file answer.
func (r *Receptionist) IdentifyUser(ctx context.Context, phoneNumber string) string {
	logger.InfoContext(ctx, "identify_user called", "phone", phoneNumber)

	r.uiPub.PublishToolUpdate(ctx, "identify_user", map[string]any{"phone": phoneNumber})

	normalized := domain.NormalizePhone(phoneNumber)
	r.state.SetPhone(normalized)

	if r.store == nil {
		return "Got it! How can I help you today?"
	}

	user, err := r.store.Users.FindByPhone(ctx, normalized)
	if err != nil {
		logger.ErrorContext(ctx, "identify_user lookup failed", "error", err)
		return "Got it! What can I help you with today?"
	}

	if user == nil {
		logger.InfoContext(ctx, "identify_user: new caller", "phone", normalized)
		return "I don't have your number on file yet, but no problem! I can still help you. What would you like to do?"
	}

	r.state.Identify(user.ID, user.FullName)
	r.state.RecordAction("Identified user: " + user.FullName)
	return fmt.Sprintf("Hey %s! Great to hear from you. How can I help you today?", user.FullName)
}

// FetchSlots offers the open slots for tomorrow. The demo calendar exposes
// a fixed slot set; no availability computation happens here.
func (r *Receptionist) FetchSlots(ctx context.Context, datePreference string) string {
	if datePreference == "" {
		datePreference = "tomorrow"
	}
	logger.InfoContext(ctx, "fetch_slots called", "date", datePreference)

	r.uiPub.PublishToolUpdate(ctx, "fetch_slots", map[string]any{"date": datePreference})

	tomorrow := r.now().Add(24 * time.Hour)
	spokenDate := speech.DateForSpeech(tomorrow.Format("2006-01-02"))

	return fmt.Sprintf(
		"Okay, for tomorrow, %s, I have openings at ten AM, two PM, and four thirty PM. Which works for you?",
		spokenDate,
	)
}

// BookAppointment books a one-hour slot. The caller's user record is
// created on the fly if this is their first booking. The slot is refused
// when any booked appointment already starts inside its window.
func (r *Receptionist) BookAppointment(ctx context.Context, phoneNumber, date, timeStr string) string {
	logger.InfoContext(ctx, "book_appointment called", "phone", phoneNumber, "date", date, "time", timeStr)

	r.uiPub.PublishToolUpdate(ctx, "book_appointment", map[string]any{
		"phone": phoneNumber,
		"date":  date,
		"time":  timeStr,
	})

	spokenDate := speech.DateForSpeech(date)
	spokenTime := speech.TimeForSpeech(timeStr)

	if r.store == nil {
		r.state.RecordAction(fmt.Sprintf("Booked appointment: %s at %s", spokenDate, spokenTime))
		return fmt.Sprintf("You're all set for %s at %s. Anything else?", spokenDate, spokenTime)
	}

	normalized := domain.NormalizePhone(phoneNumber)

	user, err := r.store.Users.FindByPhone(ctx, normalized)
	if err != nil {
		logger.ErrorContext(ctx, "book_appointment user lookup failed", "error", err)
		return "I'm having trouble booking that. Can we try again?"
	}
	if user == nil {
		user, err = r.store.Users.Create(ctx, normalized, domain.PlaceholderName)
		if err != nil {
			logger.ErrorContext(ctx, "book_appointment user create failed", "error", err)
			return "I'm having trouble booking that. Can we try again?"
		}
	}

	start, err := parseSlotStart(date, timeStr)
	if err != nil {
		logger.ErrorContext(ctx, "book_appointment bad slot", "date", date, "time", timeStr, "error", err)
		return "I'm having trouble booking that. Can we try again?"
	}
	start, end := domain.SlotWindow(start)

	existing, err := r.store.Appointments.FindBookedBetween(ctx, start, end)
	if err != nil {
		logger.ErrorContext(ctx, "book_appointment conflict check failed", "error", err)
		return "I'm having trouble booking that. Can we try again?"
	}
	if existing != nil {
		return fmt.Sprintf(
			"Oh, that slot at %s is already taken. Would you like to try a different time? I have openings at ten AM and four thirty PM.",
			spokenTime,
		)
	}

	appt, err := r.store.Appointments.Create(ctx, user.ID, start, end, "Voice Booking")
	if err != nil {
		logger.ErrorContext(ctx, "book_appointment insert failed", "error", err)
		return "I'm having trouble booking that. Can we try again?"
	}

	r.state.RecordAction(fmt.Sprintf("Booked: %s at %s", spokenDate, spokenTime))
	r.publishEvent(ctx, events.AppointmentBooked, events.AppointmentBookedEvent{
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		BookedAt:      r.now(),
	})

	return fmt.Sprintf("You're all set for %s at %s. Anything else I can help with?", spokenDate, spokenTime)
}

// RetrieveAppointments lists the caller's upcoming booked appointments,
// earliest first, at most three.
func (r *Receptionist) RetrieveAppointments(ctx context.Context, phoneNumber string) string {
	logger.InfoContext(ctx, "retrieve_appointments called", "phone", phoneNumber)

	r.uiPub.PublishToolUpdate(ctx, "retrieve_appointments", map[string]any{"phone": phoneNumber})

	if r.store == nil {
		return "You don't have any upcoming appointments. Would you like to book one?"
	}

	normalized := domain.NormalizePhone(phoneNumber)

	user, err := r.store.Users.FindByPhone(ctx, normalized)
	if err != nil {
		logger.ErrorContext(ctx, "retrieve_appointments user lookup failed", "error", err)
		return "I'm having trouble checking. Can you try again?"
	}
	if user == nil {
		return "I couldn't find any appointments. Would you like to book one?"
	}

	appointments, err := r.store.Appointments.ListUpcoming(ctx, user.ID, r.now(), 3)
	if err != nil {
		logger.ErrorContext(ctx, "retrieve_appointments query failed", "error", err)
		return "I'm having trouble checking. Can you try again?"
	}

	if len(appointments) == 0 {
		return "You don't have any upcoming appointments. Want to book one?"
	}

	spoken := make([]string, len(appointments))
	for i, a := range appointments {
		spoken[i] = fmt.Sprintf("%s at %s",
			speech.DateForSpeech(a.StartTime.Format("2006-01-02")),
			speech.TimeForSpeech(a.StartTime.Format("15:04")),
		)
	}

	r.state.RecordAction(fmt.Sprintf("Retrieved %d appointments", len(spoken)))

	if len(spoken) == 1 {
		return fmt.Sprintf("You have one appointment: %s. Need to change it?", spoken[0])
	}
	return fmt.Sprintf("You have %d appointments: %s. Anything you'd like to change?", len(spoken), strings.Join(spoken, ", "))
}

// ModifyAppointment moves the caller's first booked appointment on the
// original day to a new slot. No conflict check runs against the new slot.
func (r *Receptionist) ModifyAppointment(ctx context.Context, phoneNumber, originalDate, newDate, newTime string) string {
	logger.InfoContext(ctx, "modify_appointment called", "original_date", originalDate, "new_date", newDate, "new_time", newTime)

	r.uiPub.PublishToolUpdate(ctx, "modify_appointment", map[string]any{
		"original_date": originalDate,
		"new_date":      newDate,
		"new_time":      newTime,
	})

	spokenNewDate := speech.DateForSpeech(newDate)
	spokenNewTime := speech.TimeForSpeech(newTime)

	if r.store == nil {
		r.state.RecordAction(fmt.Sprintf("Rescheduled to: %s at %s", spokenNewDate, spokenNewTime))
		return fmt.Sprintf("Done! Moved to %s at %s. Anything else?", spokenNewDate, spokenNewTime)
	}

	normalized := domain.NormalizePhone(phoneNumber)

	user, err := r.store.Users.FindByPhone(ctx, normalized)
	if err != nil {
		logger.ErrorContext(ctx, "modify_appointment user lookup failed", "error", err)
		return "I'm having trouble with that. What time works for you?"
	}
	if user == nil {
		return "I couldn't find your account. Can you confirm your phone number?"
	}

	day, err := parseDate(originalDate)
	if err != nil {
		logger.ErrorContext(ctx, "modify_appointment bad original date", "date", originalDate, "error", err)
		return "I'm having trouble with that. What time works for you?"
	}

	appt, err := r.store.Appointments.FirstBookedOnDay(ctx, user.ID, day)
	if err != nil {
		logger.ErrorContext(ctx, "modify_appointment lookup failed", "error", err)
		return "I'm having trouble with that. What time works for you?"
	}
	if appt == nil {
		return "I couldn't find that appointment. Want me to check your schedule?"
	}

	newStart, err := parseSlotStart(newDate, newTime)
	if err != nil {
		logger.ErrorContext(ctx, "modify_appointment bad new slot", "date", newDate, "time", newTime, "error", err)
		return "I'm having trouble with that. What time works for you?"
	}
	newStart, newEnd := domain.SlotWindow(newStart)

	updated, err := r.store.Appointments.Reschedule(ctx, appt.ID, newStart, newEnd)
	if err != nil || updated == nil {
		logger.ErrorContext(ctx, "modify_appointment update failed", "error", err)
		return "That slot might not be available. Try a different time?"
	}

	r.state.RecordAction(fmt.Sprintf("Rescheduled to: %s at %s", spokenNewDate, spokenNewTime))
	r.publishEvent(ctx, events.AppointmentRescheduled, events.AppointmentRescheduledEvent{
		AppointmentID: updated.ID,
		UserID:        updated.UserID,
		StartTime:     updated.StartTime,
		EndTime:       updated.EndTime,
		MovedAt:       r.now(),
	})

	return fmt.Sprintf("Done! Moved to %s at %s. Anything else?", spokenNewDate, spokenNewTime)
}

// CancelAppointment cancels every booked appointment the caller has on the
// given day.
func (r *Receptionist) CancelAppointment(ctx context.Context, phoneNumber, date string) string {
	logger.InfoContext(ctx, "cancel_appointment called", "date", date)

	r.uiPub.PublishToolUpdate(ctx, "cancel_appointment", map[string]any{"date": date})

	spokenDate := speech.DateForSpeech(date)

	if r.store == nil {
		r.state.RecordAction("Cancelled appointment on " + spokenDate)
		return fmt.Sprintf("Cancelled your appointment for %s. Anything else?", spokenDate)
	}

	normalized := domain.NormalizePhone(phoneNumber)

	user, err := r.store.Users.FindByPhone(ctx, normalized)
	if err != nil {
		logger.ErrorContext(ctx, "cancel_appointment user lookup failed", "error", err)
		return "I'm having trouble with that. What's the date again?"
	}
	if user == nil {
		return "I couldn't find that. Can you confirm the date?"
	}

	day, err := parseDate(date)
	if err != nil {
		logger.ErrorContext(ctx, "cancel_appointment bad date", "date", date, "error", err)
		return "I'm having trouble with that. What's the date again?"
	}

	count, err := r.store.Appointments.CancelOnDay(ctx, user.ID, day)
	if err != nil {
		logger.ErrorContext(ctx, "cancel_appointment update failed", "error", err)
		return "I'm having trouble with that. What's the date again?"
	}
	if count == 0 {
		return "I couldn't find an appointment on that date. Want me to check your schedule?"
	}

	r.state.RecordAction("Cancelled: " + spokenDate)
	r.publishEvent(ctx, events.AppointmentCancelled, events.AppointmentCancelledEvent{
		UserID:      user.ID,
		Day:         date,
		Count:       count,
		CancelledAt: r.now(),
	})

	return fmt.Sprintf("Done! Cancelled your %s appointment. Need anything else?", spokenDate)
}

// EndConversation closes out the call: persists a conversation log,
// notifies the UI, and returns the spoken recap.
func (r *Receptionist) EndConversation(ctx context.Context, phoneNumber, summary string) string {
	logger.InfoContext(ctx, "end_conversation called")

	actions := r.state.Actions()

	fullSummary := summary
	if len(actions) > 0 {
		fullSummary = fmt.Sprintf("%s. Actions: %s", summary, strings.Join(actions, "; "))
	}

	if r.store != nil {
		normalized := domain.NormalizePhone(phoneNumber)

		var userID *int64
		user, err := r.store.Users.FindByPhone(ctx, normalized)
		if err != nil {
			logger.ErrorContext(ctx, "end_conversation user lookup failed", "error", err)
		} else if user != nil {
			userID = &user.ID
		}

		if _, err := r.store.Logs.Create(ctx, userID, fullSummary); err != nil {
			logger.ErrorContext(ctx, "end_conversation log insert failed", "error", err)
		}
	}

	r.uiPub.PublishToolUpdate(ctx, "end_conversation", map[string]any{
		"summary": fullSummary,
		"actions": actions,
	})
	r.publishEvent(ctx, events.CallEnded, events.CallEndedEvent{
		UserID:  r.state.UserID(),
		Summary: fullSummary,
		EndedAt: r.now(),
	})

	if len(actions) > 0 {
		recap := "Just to recap what we did today: " + strings.Join(actions, ", ") + "."
		return recap + " It was great helping you! Have a wonderful day!"
	}
	return "It was great chatting with you! Have a wonderful day, and call back anytime!"
}

// publishEvent sends a domain event to the bus, best-effort.
func (r *Receptionist) publishEvent(ctx context.Context, subject string, payload any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// parseSlotStart combines a Y-M-D date with an H:M (or H:M:S) time into the
// slot's start instant in server-local time.
func parseSlotStart(date, timeStr string) (time.Time, error) {
	combined := date + " " + timeStr
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, combined, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid slot %q %q", date, timeStr)
}

package receptionist

import (
	"context"

	"github.com/kairosvoice/kairos-agent/pkg/voice"
)

// Instructions is the persona the model runs under. The caller must never
// hear technical vocabulary; everything the tools return is already
// speech-safe.
const Instructions = `You are Kairos, a friendly receptionist helping with appointments over the phone.

CRITICAL - READ THIS FIRST:
You must NEVER mention anything technical. The caller has no idea about functions, tools, APIs, or systems.
When you need to do something (like book an appointment), just do it silently and tell them the result naturally.

HIDDEN ACTIONS:
- When you call a tool (like checking availability), DO NOT announce it.
- Just say "Let me check that for you..." or "One moment..." and then execute the tool.
- The caller should NEVER hear the name of a function or its parameters.

NATURAL CONVERSATION:
- Use filler words like "hmm", "aha", "let me see", "okay", "right" naturally to sound human.
- Don't be robotic. If you need a moment, say "One sec..." or "Let me check that..."

BANNED WORDS - Never say these:
function, tool, parameter, API, database, query, execute, system, calling, backend, server, request, response, code, error, exception

YOUR SPEAKING STYLE:
- Short sentences only. One or two sentences max.
- Sound natural: "Okay, got it" / "Sure thing" / "No problem"
- Be warm: "Great!" / "Perfect!" / "Awesome!"
- Ask follow-ups: "Anything else I can help with?"

NUMBERS AND DATES:
- Phone: Say "eight seven seven" not "877" or "eight hundred"
- Dates: Say "January twenty-second" not "01-22" or "one twenty-two"
- Times: Say "two PM" or "two thirty" not "14:00"

Just be a normal, friendly person on the phone. No tech talk!`

// Tools returns the receptionist's tool declarations for registration on a
// voice pipeline. This is the whole dispatch surface: the model picks a
// name, the pipeline runs the matching handler, nothing is reflective.
func (r *Receptionist) Tools() []voice.Tool {
	return []voice.Tool{
		{
			Name:        "identify_user",
			Description: "Look up the caller by phone number.",
			Parameters: objectSchema(map[string]any{
				"phone_number": stringParam("Caller's phone number"),
			}, "phone_number"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.IdentifyUser(ctx, strArg(args, "phone_number")), nil
			},
		},
		{
			Name:        "fetch_slots",
			Description: "Get available appointment slots.",
			Parameters: objectSchema(map[string]any{
				"date_preference": stringParam("Caller's preferred date, defaults to tomorrow"),
			}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.FetchSlots(ctx, strArg(args, "date_preference")), nil
			},
		},
		{
			Name:        "book_appointment",
			Description: "Book an appointment after the caller confirms a slot.",
			Parameters: objectSchema(map[string]any{
				"phone_number": stringParam("Caller's phone number"),
				"date":         stringParam("Date in YYYY-MM-DD format"),
				"time":         stringParam("Time in HH:MM format"),
			}, "phone_number", "date", "time"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.BookAppointment(ctx, strArg(args, "phone_number"), strArg(args, "date"), strArg(args, "time")), nil
			},
		},
		{
			Name:        "retrieve_appointments",
			Description: "Check the caller's upcoming appointments.",
			Parameters: objectSchema(map[string]any{
				"phone_number": stringParam("Caller's phone number"),
			}, "phone_number"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.RetrieveAppointments(ctx, strArg(args, "phone_number")), nil
			},
		},
		{
			Name:        "modify_appointment",
			Description: "Reschedule an existing appointment to a new date and time.",
			Parameters: objectSchema(map[string]any{
				"phone_number":  stringParam("Caller's phone number"),
				"original_date": stringParam("Original date in YYYY-MM-DD format"),
				"new_date":      stringParam("New date in YYYY-MM-DD format"),
				"new_time":      stringParam("New time in HH:MM format"),
			}, "phone_number", "original_date", "new_date", "new_time"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.ModifyAppointment(ctx,
					strArg(args, "phone_number"),
					strArg(args, "original_date"),
					strArg(args, "new_date"),
					strArg(args, "new_time"),
				), nil
			},
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel the caller's appointment on a given date.",
			Parameters: objectSchema(map[string]any{
				"phone_number": stringParam("Caller's phone number"),
				"date":         stringParam("Date to cancel in YYYY-MM-DD format"),
			}, "phone_number", "date"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.CancelAppointment(ctx, strArg(args, "phone_number"), strArg(args, "date")), nil
			},
		},
		{
			Name:        "end_conversation",
			Description: "End the call gracefully with a summary of what was done.",
			Parameters: objectSchema(map[string]any{
				"phone_number": stringParam("Caller's phone number"),
				"summary":      stringParam("Brief summary of what was done"),
			}, "phone_number", "summary"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return r.EndConversation(ctx, strArg(args, "phone_number"), strArg(args, "summary")), nil
			},
		},
	}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringParam(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

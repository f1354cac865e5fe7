// Package specialists contains the per-domain capability handlers the
// pipeline dispatches to: help, general chat, list management, calendar,
// and mail.
//
// Every specialist receives the same normalized Request and returns a
// Response that is rendered verbatim to the user. Specialists that need
// structure beyond free text (calendar, mail) issue a second, narrower
// prediction call ("query 2") to translate the text into a structured
// command, then execute that command against their capability port. The
// router's call and the specialists' calls use separate prompts with
// different vocabularies.
package specialists

import "context"

// Request is the normalized inbound message a specialist handles.
type Request struct {
	// Text is the raw user message.
	Text string
	// UserID is the caller identity (email-style), used for deferred actions.
	UserID string
	// SpaceID names the room/space the message arrived from.
	SpaceID string
}

// Response is a specialist's outcome. Message is always user-facing; OK
// false marks a degraded reply (usage hint, help text, apology) rather than
// a pipeline failure.
type Response struct {
	OK      bool
	Message string
}

// Specialist executes one capability domain.
type Specialist interface {
	Handle(ctx context.Context, req Request) Response
}

// langHebrew is the reply-language tag for Hebrew; anything else renders
// English, the default.
const langHebrew = "he"

// pick selects the reply string for the model-detected language tag.
func pick(lang, en, he string) string {
	if lang == langHebrew {
		return he
	}
	return en
}

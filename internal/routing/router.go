// Package routing decides whether the agent responds to an inbound
// message and contributes scenario-specific prompt text when it does.
package routing

import (
	"context"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/sessions"
)

// Decision is a filter's verdict on one message.
type Decision int

const (
	// Abstain defers to the next filter in the chain.
	Abstain Decision = iota
	// Respond means the agent should handle the message.
	Respond
	// Skip means the agent should silently drop the message.
	Skip
)

// ResponseFilter is one scenario-specific gate. PromptExtras and
// UserReminder are consulted only after routing decides to respond.
type ResponseFilter interface {
	// ShouldRespond gates the message: Respond, Skip, or Abstain to defer.
	ShouldRespond(ctx context.Context, msg bus.InboundMessage, session *sessions.Session) Decision

	// PromptExtras returns text appended to the system prompt, or "".
	PromptExtras(msg bus.InboundMessage, session *sessions.Session) string

	// UserReminder returns a short note prepended to the user message for
	// maximum salience, or "".
	UserReminder(msg bus.InboundMessage, session *sessions.Session) string
}

// Router chains filters. The first non-Abstain decision wins; a fully
// abstaining chain defaults to Respond.
type Router struct {
	filters []ResponseFilter
}

// NewRouter creates an empty router.
func NewRouter() *Router { return &Router{} }

// AddFilter appends a filter to the chain.
func (r *Router) AddFilter(f ResponseFilter) {
	r.filters = append(r.filters, f)
}

// ShouldRespond runs the chain.
func (r *Router) ShouldRespond(ctx context.Context, msg bus.InboundMessage, session *sessions.Session) bool {
	for _, f := range r.filters {
		switch f.ShouldRespond(ctx, msg, session) {
		case Respond:
			return true
		case Skip:
			return false
		}
	}
	return true
}

// CollectPromptExtras gathers system-prompt additions from every filter.
func (r *Router) CollectPromptExtras(msg bus.InboundMessage, session *sessions.Session) []string {
	var extras []string
	for _, f := range r.filters {
		if extra := f.PromptExtras(msg, session); extra != "" {
			extras = append(extras, extra)
		}
	}
	return extras
}

// CollectUserReminders gathers user-message reminders from every filter.
func (r *Router) CollectUserReminders(msg bus.InboundMessage, session *sessions.Session) []string {
	var reminders []string
	for _, f := range r.filters {
		if reminder := f.UserReminder(msg, session); reminder != "" {
			reminders = append(reminders, reminder)
		}
	}
	return reminders
}

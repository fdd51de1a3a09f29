package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Template codes used by the monitor and escalation engine.
const (
	TemplateSLAWarning       = "sla_warning_2h"
	TemplateSLABreach        = "sla_breach_alert"
	TemplateEscalationNotice = "escalation_notice"
)

// Trigger event tags recorded on queued notifications.
const (
	TriggerSLAWarning = "sla_warning"
	TriggerSLABreach  = "sla_breach"
	TriggerEscalation = "escalation"
	TriggerManual     = "manual"
)

// NotificationTemplate is a named, typed message template. Subject and Body
// use text/template placeholders filled from the notification context.
type NotificationTemplate struct {
	Base
	Code    string `json:"code" db:"code"`
	Name    string `json:"name" db:"name"`
	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`
}

// Recipient describes who a notification goes to: a specific user, a role,
// or a location. Exactly one field is populated.
type Recipient struct {
	UserID   *uuid.UUID `json:"user_id,omitempty" db:"recipient_user_id"`
	Role     string     `json:"role,omitempty" db:"recipient_role"`
	Location string     `json:"location,omitempty" db:"recipient_location"`
}

// Valid reports whether exactly one recipient field is set.
func (r Recipient) Valid() bool {
	n := 0
	if r.UserID != nil {
		n++
	}
	if r.Role != "" {
		n++
	}
	if r.Location != "" {
		n++
	}
	return n == 1
}

// Key returns a stable string identity used in dedup checks.
func (r Recipient) Key() string {
	switch {
	case r.UserID != nil:
		return "user:" + r.UserID.String()
	case r.Role != "":
		return "role:" + r.Role
	case r.Location != "":
		return "location:" + r.Location
	}
	return ""
}

func RoleRecipient(role string) Recipient    { return Recipient{Role: role} }
func UserRecipient(id uuid.UUID) Recipient   { return Recipient{UserID: &id} }
func LocationRecipient(loc string) Recipient { return Recipient{Location: loc} }

// QueuedNotification is one unit of outbound work in the dispatch queue.
type QueuedNotification struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	CaseID       *uuid.UUID         `json:"case_id,omitempty" db:"case_id"`
	TemplateCode string             `json:"template_code" db:"template_code"`
	Recipient    Recipient          `json:"recipient"`
	TriggerEvent string             `json:"trigger_event" db:"trigger_event"`
	Context      JSONMap            `json:"context" db:"context"`
	Status       NotificationStatus `json:"status" db:"status"`
	RetryCount   int                `json:"retry_count" db:"retry_count"`
	LastError    string             `json:"last_error,omitempty" db:"last_error"`
	SentAt       *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// DedupKey identifies a (case, template, recipient, trigger) tuple for the
// duplicate-suppression check.
type DedupKey struct {
	CaseID       *uuid.UUID
	TemplateCode string
	Recipient    Recipient
	TriggerEvent string
}

func (n *QueuedNotification) DedupKey() DedupKey {
	return DedupKey{
		CaseID:       n.CaseID,
		TemplateCode: n.TemplateCode,
		Recipient:    n.Recipient,
		TriggerEvent: n.TriggerEvent,
	}
}

// ContextJSON serializes the context payload for storage.
func (n *QueuedNotification) ContextJSON() (json.RawMessage, error) {
	if n.Context == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(n.Context)
}

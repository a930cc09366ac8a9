// Package queue defines message payloads exchanged over the message
// broker, the publisher for outbound mail requests and the background
// consumer that delivers them.
package queue

// Mail templates the consumer knows how to render.
const (
	TemplatePasswordReset = "password_reset"
	TemplateVerifyEmail   = "verify_email"
)

// mailQueueName is the durable queue carrying outbound mail requests.
const mailQueueName = "mail.outbound"

// MailRequestedEvent is published whenever a flow needs a mail sent.
// The ActionURL embeds the plaintext token; the event exists only in
// transit on the broker and is never written to the relational store.
type MailRequestedEvent struct {
	ID          string `json:"id"`           // correlation id for consumer logs
	To          string `json:"to"`           // recipient address
	Template    string `json:"template"`     // one of the Template* constants
	ActionURL   string `json:"action_url"`   // link the mail asks the user to follow
	RequestedAt string `json:"requested_at"` // RFC3339 timestamp of the request
}

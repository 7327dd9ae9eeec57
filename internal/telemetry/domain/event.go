package domain

import "time"

// Event types produced by the admission flow.
const (
	EventWaitlistSubmit  = "waitlist_submit"
	EventWaitlistApprove = "waitlist_approve"
	EventTokenRedeem     = "token_redeem"
	EventGateDecision    = "gate_decision"
)

// SourceAPI is the source recorded for events emitted by the HTTP server.
const SourceAPI = "api"

// Event is one admission telemetry event. The JSON shape is the wire format on
// the Kafka topic and in Loki lines; field names are part of that contract.
type Event struct {
	EventType string            `json:"eventType"`
	Email     string            `json:"email,omitempty"`
	ProfileID string            `json:"profileId,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

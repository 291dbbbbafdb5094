package observability

// EventEnvelope is the wire shape for operational events: websocket
// lifecycle from the hub and anything else routed through PublishEvent.
// Audit events use their own envelope in internal/telemetry.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles the correlation headers for an event, omitting
// whichever ids the caller does not have.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

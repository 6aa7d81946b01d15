package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType enumerates the agent-to-agent message kinds exchanged during
// a procurement workflow.
type MessageType string

const (
	MessageRFQ              MessageType = "rfq"
	MessageQuotation        MessageType = "quotation"
	MessageNegotiate        MessageType = "negotiate"
	MessageCounter          MessageType = "counter"
	MessageAccept           MessageType = "accept"
	MessageReject           MessageType = "reject"
	MessageLogisticsRequest MessageType = "logistics_request"
	MessageLogisticsPlan    MessageType = "logistics_plan"
	MessageComplianceCheck  MessageType = "compliance_check"
	MessageComplianceResult MessageType = "compliance_result"
	MessageStatusUpdate     MessageType = "status_update"
)

// Message is the A2A envelope: one agent-to-agent exchange with a typed
// JSON payload. After construction it should be treated as immutable.
type Message struct {
	ID        string          `json:"message_id"`
	Timestamp time.Time       `json:"timestamp"`
	From      string          `json:"from_agent"`
	To        string          `json:"to_agent"`
	Type      MessageType     `json:"message_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	InReplyTo string          `json:"in_reply_to,omitempty"`
}

// NewMessage constructs an envelope around a JSON-serializable payload.
func NewMessage(from, to string, mt MessageType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        uuid.NewString()[:12],
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Type:      mt,
		Payload:   raw,
	}, nil
}

// Reply constructs a response envelope correlated to this message.
func (m Message) Reply(mt MessageType, payload any) (Message, error) {
	r, err := NewMessage(m.To, m.From, mt, payload)
	if err != nil {
		return Message{}, err
	}
	r.InReplyTo = m.ID
	return r, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error { return json.Unmarshal(m.Payload, v) }

package realtime

import "encoding/json"

// Event is the frame written to clients
type Event struct {
	Name  string `json:"event"`
	AckID string `json:"ack_id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// inboundEvent is a frame read from a client
type inboundEvent struct {
	Name  string          `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Ack status values
const (
	AckSuccess = "success"
	AckError   = "error"
)

// Ack answers an inbound event that carried an ack_id. Message is the stored
// record on success and a short reason on error.
type Ack struct {
	Status  string `json:"status"`
	Message any    `json:"message,omitempty"`
}

func errorAck(reason string) *Ack {
	return &Ack{Status: AckError, Message: reason}
}

type sendChatMessagePayload struct {
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
}

type markReadPayload struct {
	ConversationID uint   `json:"conversation_id"`
	MessageIDs     []uint `json:"message_ids,omitempty"`
	UpToMessageID  uint   `json:"up_to_message_id,omitempty"`
}

type typingPayload struct {
	ConversationID uint `json:"conversation_id"`
}

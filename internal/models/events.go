package models

// Live event names. Inbound events come from clients; the rest are pushed by the server.
const (
	EventSendChatMessage = "send-chat-message" // inbound
	EventMarkRead        = "mark-read"         // inbound
	EventTypingStart     = "typing-start"      // both directions
	EventTypingStop      = "typing-stop"       // both directions
	EventChatMessage     = "chat-message"
	EventReadReceipt     = "read-receipt"
	EventNewNotification = "new-notification"
	EventAck             = "ack"
)

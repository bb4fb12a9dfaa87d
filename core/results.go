package core

// Answer is the reconstructed assistant reply for one ask.
type Answer struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`

	// Created reports whether this ask opened the conversation instead of
	// reusing a live one.
	Created bool `json:"created,omitempty"`
}

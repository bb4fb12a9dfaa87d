package core

import "strings"

// AskRequest represents a single question routed to the assistant.
type AskRequest struct {
	Question string `json:"question"`

	// ProgrammingLanguage scopes a freshly opened conversation; the remote
	// service ignores it for reused conversations.
	ProgrammingLanguage string `json:"programming_language,omitempty"`

	// ForceNew opens a fresh conversation even when a live one exists.
	ForceNew bool `json:"force_new,omitempty"`
}

// Validate rejects requests that must not reach the network.
func (r AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return NewError(ErrEmptyInput, "question must not be empty")
	}
	return nil
}

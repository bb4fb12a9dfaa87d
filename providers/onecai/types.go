package onecai

// conversationRequest opens a new conversation. The service expects all
// three keys present even when empty.
type conversationRequest struct {
	UILanguage          string `json:"ui_language"`
	ProgrammingLanguage string `json:"programming_language"`
	ScriptLanguage      string `json:"script_language"`
}

// conversationResponse carries the identifier of a freshly opened
// conversation.
type conversationResponse struct {
	UUID string `json:"uuid"`
}

// messageRequest submits one instruction to an open conversation.
type messageRequest struct {
	Instruction string `json:"instruction"`
}

// ConversationOptions scope a freshly opened conversation. Empty fields
// fall back to the client defaults.
type ConversationOptions struct {
	ProgrammingLanguage string
	ScriptLanguage      string
}

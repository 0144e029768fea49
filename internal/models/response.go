package models

// TokenUsage records token accounting reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProcessedAttachment describes how an attachment was consumed by a provider.
type ProcessedAttachment struct {
	Type     AttachmentType `json:"type"`
	Filename string         `json:"filename,omitempty"`
	UsedAs   string         `json:"used_as,omitempty"`
}

// UnifiedResponse is the normalized provider result. Content and Images are
// not mutually exclusive; some models return both in a single response.
type UnifiedResponse struct {
	Content string   `json:"content,omitempty"`
	Images  []string `json:"images,omitempty"`

	ModelUsed            string                `json:"model_used"`
	Provider             string                `json:"provider"`
	Usage                TokenUsage            `json:"usage"`
	FinishReason         string                `json:"finish_reason"`
	AttachmentsProcessed []ProcessedAttachment `json:"attachments_processed,omitempty"`
	Metadata             map[string]any        `json:"metadata,omitempty"`
}

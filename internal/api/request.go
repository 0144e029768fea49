package api

import (
	"fmt"

	"inference-gateway/internal/models"
)

// ChatRequest is the inbound wire contract for POST /api/ai/chat. Exactly one
// of prompt or messages carries the conversation; validator tags cover shape,
// the mutual exclusion is enforced in ToUnified.
type ChatRequest struct {
	Model            string              `json:"model,omitempty"`
	Prompt           string              `json:"prompt,omitempty"`
	SystemMessage    string              `json:"system_message,omitempty"`
	Messages         []ChatMessage       `json:"messages,omitempty" validate:"omitempty,dive"`
	Attachments      []AttachmentPayload `json:"attachments,omitempty" validate:"omitempty,dive"`
	Temperature      *float64            `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens        *int                `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	TopP             *float64            `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	FrequencyPenalty *float64            `json:"frequency_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	PresencePenalty  *float64            `json:"presence_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	StopSequences    []string            `json:"stop_sequences,omitempty"`
	ReasoningEffort  string              `json:"reasoning_effort,omitempty" validate:"omitempty,oneof=low medium high"`
	ResponseFormat   string              `json:"response_format,omitempty" validate:"omitempty,oneof=text image json"`
	Stream           bool                `json:"stream,omitempty"`
	Extras           map[string]any      `json:"extras,omitempty"`
}

// ChatMessage is one inbound conversation turn.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// AttachmentPayload is a base64-encoded attachment. The MIME type is sniffed
// from the decoded bytes when omitted.
type AttachmentPayload struct {
	Data     string `json:"data" validate:"required"`
	MIMEType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ToUnified converts the wire request into the internal form, decoding
// attachments along the way. An omitted model selects automatically.
func (r ChatRequest) ToUnified() (*models.UnifiedRequest, error) {
	var attachments []models.Attachment
	for i, payload := range r.Attachments {
		att, err := models.AttachmentFromBase64(payload.Data, payload.MIMEType, payload.Filename)
		if err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		attachments = append(attachments, att)
	}

	var messages []models.Message
	for _, msg := range r.Messages {
		messages = append(messages, models.Message{
			Role:    models.MessageRole(msg.Role),
			Content: msg.Content,
		})
	}

	model := r.Model
	if model == "" {
		model = models.AutoModel
	}

	req := &models.UnifiedRequest{
		Prompt:           r.Prompt,
		SystemMessage:    r.SystemMessage,
		Messages:         messages,
		Attachments:      attachments,
		Temperature:      r.Temperature,
		MaxTokens:        r.MaxTokens,
		TopP:             r.TopP,
		FrequencyPenalty: r.FrequencyPenalty,
		PresencePenalty:  r.PresencePenalty,
		StopSequences:    r.StopSequences,
		ReasoningEffort:  r.ReasoningEffort,
		ResponseFormat:   models.ResponseFormat(r.ResponseFormat),
		Stream:           r.Stream,
		Model:            model,
		Extras:           r.Extras,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

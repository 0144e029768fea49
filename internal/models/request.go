package models

import (
	"errors"
	"fmt"
)

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a multi-turn conversation. Order within a
// request is chronological and semantically meaningful.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ResponseFormat selects the kind of output the caller wants back.
type ResponseFormat string

const (
	FormatText  ResponseFormat = "text"
	FormatImage ResponseFormat = "image"
	FormatJSON  ResponseFormat = "json"
)

// RequestType is the classified intent of a unified request.
type RequestType string

const (
	RequestTextGeneration   RequestType = "text"
	RequestVisionAnalysis   RequestType = "vision"
	RequestImageGeneration  RequestType = "image_generation"
	RequestImageEdit        RequestType = "image_edit"
	RequestDocumentAnalysis RequestType = "document"
)

// AutoModel asks the service to pick a model based on the request type.
const AutoModel = "auto"

// UnifiedRequest is the provider-agnostic inference request. Exactly one of
// Prompt or Messages must be set. Generation parameters are pointers so an
// explicit zero survives parameter mapping; nil means "not supplied".
type UnifiedRequest struct {
	// Single-turn form.
	Prompt        string
	SystemMessage string

	// Multi-turn form.
	Messages []Message

	Attachments []Attachment

	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string

	// ReasoningEffort is "low", "medium" or "high" for reasoning models.
	ReasoningEffort string

	ResponseFormat ResponseFormat
	Stream         bool

	// Model is AutoModel or a "provider/model" registry name.
	Model string

	// Extras carries provider-specific knobs (aspect_ratio, quality, style,
	// response_modalities, size). Recognised keys are documented per model
	// in the provider catalogs.
	Extras map[string]any
}

// Validate enforces the prompt-XOR-messages invariant and message shape.
func (r *UnifiedRequest) Validate() error {
	hasPrompt := r.Prompt != ""
	hasMessages := len(r.Messages) > 0

	if !hasPrompt && !hasMessages {
		return errors.New("either prompt or messages must be provided")
	}
	if hasPrompt && hasMessages {
		return errors.New("prompt and messages are mutually exclusive; use one or the other")
	}

	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d has invalid role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
	}

	return nil
}

// MultiTurn reports whether the request uses the messages form.
func (r *UnifiedRequest) MultiTurn() bool {
	return len(r.Messages) > 0
}

// Format returns the requested response format, defaulting to text.
func (r *UnifiedRequest) Format() ResponseFormat {
	if r.ResponseFormat == "" {
		return FormatText
	}
	return r.ResponseFormat
}

// ExtraString reads a string-valued knob from Extras.
func (r *UnifiedRequest) ExtraString(key string) (string, bool) {
	if r.Extras == nil {
		return "", false
	}
	v, ok := r.Extras[key].(string)
	return v, ok && v != ""
}

// DetermineRequestType classifies a request from its attachments and the
// requested response format. Pure function; the full grid is unit-tested.
func DetermineRequestType(attachments []Attachment, format ResponseFormat) RequestType {
	var hasImages, hasDocuments bool
	for _, att := range attachments {
		switch att.Type {
		case AttachmentImage:
			hasImages = true
		case AttachmentPDF, AttachmentText, AttachmentDocument:
			hasDocuments = true
		}
	}

	switch {
	case format == FormatImage && hasImages:
		return RequestImageEdit
	case format == FormatImage:
		return RequestImageGeneration
	case hasImages:
		return RequestVisionAnalysis
	case hasDocuments:
		return RequestDocumentAnalysis
	default:
		return RequestTextGeneration
	}
}

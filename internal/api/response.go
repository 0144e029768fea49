package api

import (
	"inference-gateway/internal/models"
)

// ChatResponse is the outbound envelope for inference endpoints. Provider
// failures after a well-formed request are reported in-band with success set
// to false, so callers always get the same shape back.
type ChatResponse struct {
	Success              bool                         `json:"success"`
	Content              string                       `json:"content,omitempty"`
	Images               []string                     `json:"images,omitempty"`
	ModelUsed            string                       `json:"model_used,omitempty"`
	Provider             string                       `json:"provider,omitempty"`
	Usage                *models.TokenUsage           `json:"usage,omitempty"`
	FinishReason         string                       `json:"finish_reason,omitempty"`
	AttachmentsProcessed []models.ProcessedAttachment `json:"attachments_processed,omitempty"`
	Metadata             map[string]any               `json:"metadata,omitempty"`
	Error                string                       `json:"error,omitempty"`
}

// SuccessResponse wraps a normalized provider result.
func SuccessResponse(resp *models.UnifiedResponse) ChatResponse {
	usage := resp.Usage
	return ChatResponse{
		Success:              true,
		Content:              resp.Content,
		Images:               resp.Images,
		ModelUsed:            resp.ModelUsed,
		Provider:             resp.Provider,
		Usage:                &usage,
		FinishReason:         resp.FinishReason,
		AttachmentsProcessed: resp.AttachmentsProcessed,
		Metadata:             resp.Metadata,
	}
}

// FailureResponse reports an inference failure in-band.
func FailureResponse(err error) ChatResponse {
	return ChatResponse{
		Success: false,
		Error:   err.Error(),
	}
}

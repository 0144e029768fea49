package openai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"inference-gateway/internal/config"
	"inference-gateway/internal/models"
	"inference-gateway/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "inference-gateway/0.1"
	defaultBaseURL  = "https://api.openai.com/v1"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Provider implements the Provider interface against the OpenAI REST API.
type Provider struct {
	name      string
	apiKey    string
	headers   map[string]string
	client    *http.Client
	catalog   models.Catalog
	chatURL   string
	imagesURL string
}

// New creates an OpenAI provider from configuration. A missing API key is not
// an error; the provider registers but reports itself unavailable.
func New(cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	catalog, err := models.ParseCatalog(catalogYAML)
	if err != nil {
		return nil, err
	}

	return &Provider{
		name:      "openai",
		apiKey:    cfg.APIKey,
		headers:   cfg.Headers,
		client:    client,
		catalog:   catalog,
		chatURL:   baseURL + "/chat/completions",
		imagesURL: baseURL + "/images/generations",
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Available() bool {
	return p.apiKey != ""
}

func (p *Provider) Models() []models.ModelConfig {
	result := make([]models.ModelConfig, len(p.catalog.Models))
	copy(result, p.catalog.Models)
	return result
}

func (p *Provider) Model(name string) (models.ModelConfig, bool) {
	for _, m := range p.catalog.Models {
		if m.Name == name {
			return m, true
		}
	}
	return models.ModelConfig{}, false
}

func (p *Provider) MapParameters(req *models.UnifiedRequest, cfg models.ModelConfig) map[string]any {
	return mapParameters(req, cfg)
}

// ProcessRequest classifies the request, checks the model can serve it and
// dispatches against the matching endpoint.
func (p *Provider) ProcessRequest(ctx context.Context, modelName string, req *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	cfg, ok := p.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: openai/%s", provider.ErrUnknownModel, modelName)
	}
	if !p.Available() {
		return nil, fmt.Errorf("%w: openai has no API key configured", provider.ErrProviderUnavailable)
	}

	requestType := models.DetermineRequestType(req.Attachments, req.Format())
	if err := models.ValidateCapabilities(requestType, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrIncompatibleRequest, err)
	}

	switch requestType {
	case models.RequestImageGeneration, models.RequestImageEdit:
		return p.generateImage(ctx, cfg, req)
	default:
		return p.chat(ctx, cfg, req)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *imageURLBlock `json:"image_url,omitempty"`
}

type imageURLBlock struct {
	URL string `json:"url"`
}

func (p *Provider) chat(ctx context.Context, cfg models.ModelConfig, req *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	messages, processed, err := buildChatMessages(req)
	if err != nil {
		return nil, err
	}

	params := mapParameters(req, cfg)
	// The response decoder reads a single JSON body, so the stream flag is
	// never forwarded upstream.
	if _, ok := params["stream"]; ok {
		delete(params, "stream")
		slog.Warn("streaming is not relayed, returning the full response", "model", cfg.Name)
	}

	payload := map[string]any{
		"model":    cfg.Name,
		"messages": messages,
	}
	for key, value := range params {
		payload[key] = value
	}

	httpReq, err := p.newRequest(ctx, p.chatURL, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(httpResp)
	}

	var providerResp chatResponse
	if err := decodeJSON(httpResp.Body, &providerResp); err != nil {
		return nil, err
	}

	unified, err := providerResp.toUnified(cfg.Name)
	if err != nil {
		return nil, err
	}
	unified.AttachmentsProcessed = processed
	return unified, nil
}

// buildChatMessages converts the unified request into chat completion
// messages. Image attachments become image_url content blocks on the final
// user turn; text attachments are appended inline to the same turn.
func buildChatMessages(req *models.UnifiedRequest) ([]chatMessage, []models.ProcessedAttachment, error) {
	var processed []models.ProcessedAttachment
	var images []models.Attachment
	var docText strings.Builder

	for _, att := range req.Attachments {
		switch att.Type {
		case models.AttachmentImage:
			images = append(images, att)
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "image_url",
			})
		case models.AttachmentText:
			text, err := att.Text()
			if err != nil {
				return nil, nil, fmt.Errorf("attachment %q: %w", att.Filename, err)
			}
			fmt.Fprintf(&docText, "\n\nDocument %q:\n%s", att.Filename, text)
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "inline_text",
			})
		default:
			slog.Warn("skipping attachment unsupported by openai chat",
				"type", att.Type, "filename", att.Filename)
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "skipped",
			})
		}
	}

	var messages []chatMessage
	if req.MultiTurn() {
		messages = make([]chatMessage, 0, len(req.Messages))
		for _, msg := range req.Messages {
			messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
		}
	} else {
		if req.SystemMessage != "" {
			messages = append(messages, chatMessage{Role: "system", Content: req.SystemMessage})
		}
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	if docText.Len() > 0 || len(images) > 0 {
		idx := lastUserIndex(messages)
		if idx < 0 {
			return nil, nil, errors.New("attachments require at least one user message")
		}

		text, _ := messages[idx].Content.(string)
		text += docText.String()

		if len(images) == 0 {
			messages[idx].Content = text
		} else {
			blocks := []contentBlock{{Type: "text", Text: text}}
			for _, img := range images {
				blocks = append(blocks, contentBlock{
					Type:     "image_url",
					ImageURL: &imageURLBlock{URL: img.DataURL()},
				})
			}
			messages[idx].Content = blocks
		}
	}

	return messages, processed, nil
}

func lastUserIndex(messages []chatMessage) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return i
		}
	}
	return -1
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *usageBlock  `json:"usage,omitempty"`
}

type chatChoice struct {
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usageBlock struct {
	PromptTokens      int                `json:"prompt_tokens"`
	CompletionTokens  int                `json:"completion_tokens"`
	TotalTokens       int                `json:"total_tokens"`
	CompletionDetails *completionDetails `json:"completion_tokens_details,omitempty"`
}

type completionDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

func (r chatResponse) toUnified(modelName string) (*models.UnifiedResponse, error) {
	if len(r.Choices) == 0 {
		return nil, errors.New("openai response did not include choices")
	}

	choice := r.Choices[0]
	unified := &models.UnifiedResponse{
		Content:      choice.Message.Content,
		ModelUsed:    modelName,
		Provider:     "openai",
		FinishReason: choice.FinishReason,
	}

	var reasoningTokens int
	if r.Usage != nil {
		unified.Usage = models.TokenUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
		if r.Usage.CompletionDetails != nil {
			reasoningTokens = r.Usage.CompletionDetails.ReasoningTokens
		}
	}

	if choice.Message.Content == "" {
		if reasoningTokens > 0 {
			slog.Warn("openai spent the whole completion budget on reasoning",
				"model", modelName, "reasoning_tokens", reasoningTokens)
			unified.Metadata = map[string]any{
				"warning": "model used all completion tokens for reasoning; increase the token limit",
			}
		} else {
			slog.Warn("openai returned empty content",
				"model", modelName, "finish_reason", choice.FinishReason, "usage", r.Usage)
		}
	}

	return unified, nil
}

type imagePayload struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

func (p *Provider) generateImage(ctx context.Context, cfg models.ModelConfig, req *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == models.RoleUser {
				prompt = req.Messages[i].Content
				break
			}
		}
	}
	if prompt == "" {
		return nil, errors.New("image generation requires a prompt")
	}

	payload := imagePayload{
		Model:  cfg.Name,
		Prompt: prompt,
		N:      1,
		Size:   imageSize(req, cfg),
	}
	if cfg.SupportsParameter("quality") {
		payload.Quality = "standard"
		if quality, ok := req.ExtraString("quality"); ok {
			payload.Quality = quality
		}
	}
	if style, ok := req.ExtraString("style"); ok && cfg.SupportsParameter("style") {
		payload.Style = style
	}

	httpReq, err := p.newRequest(ctx, p.imagesURL, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(httpResp)
	}

	var providerResp imageResponse
	if err := decodeJSON(httpResp.Body, &providerResp); err != nil {
		return nil, err
	}

	return providerResp.toUnified(cfg.Name)
}

// imageSize resolves the generation size from an explicit size knob or an
// aspect_ratio hint, defaulting to square.
func imageSize(req *models.UnifiedRequest, cfg models.ModelConfig) string {
	if !cfg.SupportsParameter("size") {
		return ""
	}
	if size, ok := req.ExtraString("size"); ok {
		return size
	}

	ratio, _ := req.ExtraString("aspect_ratio")
	switch ratio {
	case "3:2", "16:9":
		return "1792x1024"
	case "2:3", "9:16":
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

type imageResponse struct {
	Data []imageDatum `json:"data"`
}

type imageDatum struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

func (r imageResponse) toUnified(modelName string) (*models.UnifiedResponse, error) {
	if len(r.Data) == 0 {
		return nil, errors.New("openai image response contained no data")
	}

	images := make([]string, 0, len(r.Data))
	var metadata map[string]any
	for _, datum := range r.Data {
		switch {
		case datum.URL != "":
			images = append(images, datum.URL)
		case datum.B64JSON != "":
			images = append(images, "data:image/png;base64,"+datum.B64JSON)
		}
		if datum.RevisedPrompt != "" && metadata == nil {
			metadata = map[string]any{"revised_prompt": datum.RevisedPrompt}
		}
	}

	return &models.UnifiedResponse{
		Images:       images,
		ModelUsed:    modelName,
		Provider:     "openai",
		FinishReason: "completed",
		Metadata:     metadata,
	}, nil
}

func (p *Provider) newRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("openai error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

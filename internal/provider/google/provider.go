package google

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
	"net/url"
	"strings"

	"inference-gateway/internal/config"
	"inference-gateway/internal/models"
	"inference-gateway/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "inference-gateway/0.1"
	defaultBaseURL  = "https://generativelanguage.googleapis.com"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Provider implements the Provider interface against the Gemini REST API.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	headers map[string]string
	client  *http.Client
	catalog models.Catalog
}

// New creates a Google Gemini provider from configuration. A missing API key
// is not an error; the provider registers but reports itself unavailable.
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
		name:    "google",
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		headers: cfg.Headers,
		client:  client,
		catalog: catalog,
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
// issues a generateContent call. All request types share the endpoint; image
// output is selected through response modalities.
func (p *Provider) ProcessRequest(ctx context.Context, modelName string, req *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	cfg, ok := p.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: google/%s", provider.ErrUnknownModel, modelName)
	}
	if !p.Available() {
		return nil, fmt.Errorf("%w: google has no API key configured", provider.ErrProviderUnavailable)
	}

	requestType := models.DetermineRequestType(req.Attachments, req.Format())
	if err := models.ValidateCapabilities(requestType, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrIncompatibleRequest, err)
	}

	contents, processed, err := buildContents(req)
	if err != nil {
		return nil, err
	}

	generationConfig := mapParameters(req, cfg)
	// Streaming uses a different endpoint and the stream flag is not a
	// generationConfig field; the full result is returned instead.
	if _, ok := generationConfig["stream"]; ok {
		delete(generationConfig, "stream")
		slog.Warn("streaming is not relayed, returning the full response", "model", cfg.Name)
	}

	wantsImage := requestType == models.RequestImageGeneration || requestType == models.RequestImageEdit
	if wantsImage {
		applyImageConfig(generationConfig, req)
	}

	payload := generateRequest{Contents: contents}
	if len(generationConfig) > 0 {
		payload.GenerationConfig = generationConfig
	}

	httpReq, err := p.newRequest(ctx, cfg.Name, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(httpResp)
	}

	var providerResp generateResponse
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

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// buildContents converts the unified request into Gemini contents. Gemini has
// no system role, so a system message is folded into the first user turn, and
// assistant turns are remapped to the "model" role. Image attachments become
// inline_data parts on the final user turn.
func buildContents(req *models.UnifiedRequest) ([]content, []models.ProcessedAttachment, error) {
	var processed []models.ProcessedAttachment
	var imageParts []part
	var docText strings.Builder

	for _, att := range req.Attachments {
		switch att.Type {
		case models.AttachmentImage:
			imageParts = append(imageParts, part{
				InlineData: &inlineData{MIMEType: att.MIMEType, Data: att.ToBase64()},
			})
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "inline_data",
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
		case models.AttachmentPDF:
			imageParts = append(imageParts, part{
				InlineData: &inlineData{MIMEType: att.MIMEType, Data: att.ToBase64()},
			})
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "inline_data",
			})
		default:
			slog.Warn("skipping attachment unsupported by gemini",
				"type", att.Type, "filename", att.Filename)
			processed = append(processed, models.ProcessedAttachment{
				Type:     att.Type,
				Filename: att.Filename,
				UsedAs:   "skipped",
			})
		}
	}

	var contents []content
	if req.MultiTurn() {
		contents = make([]content, 0, len(req.Messages))
		for _, msg := range req.Messages {
			role := "user"
			if msg.Role == models.RoleAssistant {
				role = "model"
			}
			contents = append(contents, content{
				Role:  role,
				Parts: []part{{Text: msg.Content}},
			})
		}
	} else {
		text := req.Prompt
		if req.SystemMessage != "" {
			text = fmt.Sprintf("System: %s\n\nUser: %s", req.SystemMessage, req.Prompt)
		}
		contents = []content{{Role: "user", Parts: []part{{Text: text}}}}
	}

	if docText.Len() > 0 || len(imageParts) > 0 {
		idx := lastUserIndex(contents)
		if idx < 0 {
			return nil, nil, errors.New("attachments require at least one user message")
		}
		if docText.Len() > 0 {
			contents[idx].Parts[0].Text += docText.String()
		}
		contents[idx].Parts = append(contents[idx].Parts, imageParts...)
	}

	return contents, processed, nil
}

func lastUserIndex(contents []content) int {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == "user" {
			return i
		}
	}
	return -1
}

// applyImageConfig prepares a generation config for image output. Modalities
// default to text plus image so interleaved responses come through.
func applyImageConfig(generationConfig map[string]any, req *models.UnifiedRequest) {
	modalities := []string{"Text", "Image"}
	if raw, ok := req.Extras["response_modalities"]; ok {
		if custom, ok := toStringSlice(raw); ok {
			modalities = custom
		}
	}
	generationConfig["responseModalities"] = modalities

	if ratio, ok := req.ExtraString("aspect_ratio"); ok {
		generationConfig["imageConfig"] = map[string]any{"aspectRatio": ratio}
	}
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, str)
		}
		return result, true
	}
	return nil, false
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      candidateContent `json:"content"`
	FinishReason string           `json:"finishReason"`
}

type candidateContent struct {
	Role  string          `json:"role"`
	Parts []candidatePart `json:"parts"`
}

type candidatePart struct {
	Text       string              `json:"text,omitempty"`
	InlineData *candidateImageData `json:"inlineData,omitempty"`
}

type candidateImageData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (r generateResponse) toUnified(modelName string) (*models.UnifiedResponse, error) {
	if len(r.Candidates) == 0 {
		return nil, errors.New("gemini response contained no candidates")
	}

	cand := r.Candidates[0]
	var text strings.Builder
	var images []string
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			images = append(images, fmt.Sprintf("data:%s;base64,%s", p.InlineData.MIMEType, p.InlineData.Data))
		}
	}

	contentText := text.String()
	if contentText == "" && len(images) == 0 {
		switch cand.FinishReason {
		case "MAX_TOKENS":
			contentText = "[Response truncated due to max tokens limit]"
		case "SAFETY":
			contentText = "[Response blocked due to safety filters]"
		case "RECITATION":
			contentText = "[Response blocked due to recitation filters]"
		default:
			return nil, fmt.Errorf("gemini candidate had no content (finish reason %q)", cand.FinishReason)
		}
	}

	unified := &models.UnifiedResponse{
		Content:      contentText,
		Images:       images,
		ModelUsed:    modelName,
		Provider:     "google",
		FinishReason: strings.ToLower(cand.FinishReason),
	}
	if r.UsageMetadata != nil {
		unified.Usage = models.TokenUsage{
			PromptTokens:     r.UsageMetadata.PromptTokenCount,
			CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      r.UsageMetadata.TotalTokenCount,
		}
	}
	return unified, nil
}

func (p *Provider) newRequest(ctx context.Context, modelName string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, modelName, url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)

	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gemini error (%s): %s", apiErr.Error.Status, apiErr.Error.Message)
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

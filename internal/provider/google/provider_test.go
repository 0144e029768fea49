package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inference-gateway/internal/config"
	"inference-gateway/internal/models"
	"inference-gateway/internal/provider"
)

func newTestServer(t *testing.T, wantModel string, response any, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/"+wantModel+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func providerFor(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(config.ProviderConfig{Name: "google", APIKey: "test-key", BaseURL: baseURL}, &http.Client{})
	require.NoError(t, err)
	return p
}

func textResponse(text, finishReason string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": finishReason,
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     8,
			"candidatesTokenCount": 3,
			"totalTokenCount":      11,
		},
	}
}

func TestProcessRequestText(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, "gemini-2.5-flash", textResponse("Hello!", "STOP"), &captured)
	defer srv.Close()

	p := providerFor(t, srv.URL)
	resp, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{
		Prompt:        "Say hello",
		SystemMessage: "Be friendly",
		Temperature:   float64Ptr(0.4),
		MaxTokens:     intPtr(256),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, "gemini-2.5-flash", resp.ModelUsed)
	assert.Equal(t, "google", resp.Provider)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, models.TokenUsage{PromptTokens: 8, CompletionTokens: 3, TotalTokens: 11}, resp.Usage)

	contents := captured["contents"].([]any)
	require.Len(t, contents, 1)
	turn := contents[0].(map[string]any)
	assert.Equal(t, "user", turn["role"])

	text := turn["parts"].([]any)[0].(map[string]any)["text"].(string)
	assert.Equal(t, "System: Be friendly\n\nUser: Say hello", text)

	genConfig := captured["generationConfig"].(map[string]any)
	assert.Equal(t, 0.4, genConfig["temperature"])
	assert.Equal(t, float64(256), genConfig["maxOutputTokens"])
}

func TestProcessRequestStreamFlagStaysLocal(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, "gemini-2.5-flash", textResponse("full answer", "STOP"), &captured)
	defer srv.Close()

	p := providerFor(t, srv.URL)
	resp, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{
		Prompt: "hi",
		Stream: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "full answer", resp.Content)
	genConfig, _ := captured["generationConfig"].(map[string]any)
	_, present := genConfig["stream"]
	assert.False(t, present)
}

func TestProcessRequestMultiTurnRoleRemap(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, "gemini-2.5-flash", textResponse("ok", "STOP"), &captured)
	defer srv.Close()

	p := providerFor(t, srv.URL)
	_, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "be brief"},
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
			{Role: models.RoleUser, Content: "look"},
		},
		Attachments: []models.Attachment{
			{Content: []byte{0x01}, MIMEType: "image/png", Type: models.AttachmentImage},
		},
	})
	require.NoError(t, err)

	contents := captured["contents"].([]any)
	require.Len(t, contents, 4)

	roles := make([]string, 0, len(contents))
	for _, c := range contents {
		roles = append(roles, c.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"user", "user", "model", "user"}, roles)

	// Inline image lands on the final user turn.
	lastParts := contents[3].(map[string]any)["parts"].([]any)
	require.Len(t, lastParts, 2)
	inline := lastParts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/png", inline["mime_type"])
	assert.NotEmpty(t, inline["data"])
}

func TestProcessRequestLabeledFinishReasons(t *testing.T) {
	tests := []struct {
		finishReason string
		wantContent  string
	}{
		{"MAX_TOKENS", "[Response truncated due to max tokens limit]"},
		{"SAFETY", "[Response blocked due to safety filters]"},
		{"RECITATION", "[Response blocked due to recitation filters]"},
	}

	for _, tt := range tests {
		t.Run(tt.finishReason, func(t *testing.T) {
			response := map[string]any{
				"candidates": []map[string]any{
					{
						"content":      map[string]any{"role": "model", "parts": []map[string]any{}},
						"finishReason": tt.finishReason,
					},
				},
			}

			srv := newTestServer(t, "gemini-2.5-flash", response, nil)
			defer srv.Close()

			p := providerFor(t, srv.URL)
			resp, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{Prompt: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, resp.Content)
		})
	}
}

func TestProcessRequestImageGeneration(t *testing.T) {
	response := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{
						{"text": "Here is your image."},
						{"inlineData": map[string]any{"mimeType": "image/png", "data": "aW1n"}},
					},
				},
				"finishReason": "STOP",
			},
		},
	}

	var captured map[string]any
	srv := newTestServer(t, "gemini-2.5-flash-image", response, &captured)
	defer srv.Close()

	p := providerFor(t, srv.URL)
	resp, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash-image", &models.UnifiedRequest{
		Prompt:         "draw a cat",
		ResponseFormat: models.FormatImage,
		Extras:         map[string]any{"aspect_ratio": "1:1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is your image.", resp.Content)
	assert.Equal(t, []string{"data:image/png;base64,aW1n"}, resp.Images)

	genConfig := captured["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"Text", "Image"}, genConfig["responseModalities"])
	imageConfig := genConfig["imageConfig"].(map[string]any)
	assert.Equal(t, "1:1", imageConfig["aspectRatio"])
}

func TestProcessRequestImageEdit(t *testing.T) {
	response := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{
						{"inlineData": map[string]any{"mimeType": "image/png", "data": "ZWRpdGVk"}},
					},
				},
				"finishReason": "STOP",
			},
		},
	}

	var captured map[string]any
	srv := newTestServer(t, "gemini-2.5-flash-image", response, &captured)
	defer srv.Close()

	p := providerFor(t, srv.URL)
	resp, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash-image", &models.UnifiedRequest{
		Prompt:         "make it blue",
		ResponseFormat: models.FormatImage,
		Attachments: []models.Attachment{
			{Content: []byte{0x01}, MIMEType: "image/png", Filename: "in.png", Type: models.AttachmentImage},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"data:image/png;base64,ZWRpdGVk"}, resp.Images)
	require.Len(t, resp.AttachmentsProcessed, 1)
	assert.Equal(t, "inline_data", resp.AttachmentsProcessed[0].UsedAs)

	// Source image travels with the prompt.
	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
}

func TestProcessRequestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	p := providerFor(t, srv.URL)
	_, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestProcessRequestUnknownModel(t *testing.T) {
	p := providerFor(t, "http://unused.example")
	_, err := p.ProcessRequest(context.Background(), "gemini-99", &models.UnifiedRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
}

func TestProcessRequestWithoutAPIKey(t *testing.T) {
	p, err := New(config.ProviderConfig{Name: "google"}, &http.Client{})
	require.NoError(t, err)
	assert.False(t, p.Available())

	_, err = p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestProcessRequestIncompatibleModel(t *testing.T) {
	p := providerFor(t, "http://unused.example")
	_, err := p.ProcessRequest(context.Background(), "gemini-2.5-flash", &models.UnifiedRequest{
		Prompt:         "draw a cat",
		ResponseFormat: models.FormatImage,
	})
	assert.ErrorIs(t, err, provider.ErrIncompatibleRequest)
}

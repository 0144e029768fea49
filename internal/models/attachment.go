package models

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AttachmentType classifies an attachment payload.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentText     AttachmentType = "text"
	AttachmentPDF      AttachmentType = "pdf"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentVideo    AttachmentType = "video"
	AttachmentDocument AttachmentType = "document"
	AttachmentUnknown  AttachmentType = "unknown"
)

// DetectAttachmentType classifies a MIME type by its prefix.
func DetectAttachmentType(mimeType string) AttachmentType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mimeType, "text/"):
		return AttachmentText
	case mimeType == "application/pdf":
		return AttachmentPDF
	case strings.HasPrefix(mimeType, "audio/"):
		return AttachmentAudio
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentVideo
	default:
		return AttachmentUnknown
	}
}

// Attachment is a binary payload carried by a unified request. It is owned by
// the request that carries it and must not be mutated after construction.
type Attachment struct {
	Content  []byte
	MIMEType string
	Filename string
	Type     AttachmentType
	Metadata map[string]any
}

// AttachmentFromFile reads path and builds an attachment. The MIME type is
// derived from the file extension, falling back to content sniffing when the
// extension is unrecognised.
func AttachmentFromFile(path string) (Attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment file %q: %w", path, err)
	}

	mimeType := normalizeMIME(mime.TypeByExtension(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = normalizeMIME(mimetype.Detect(content).String())
	}

	return Attachment{
		Content:  content,
		MIMEType: mimeType,
		Filename: filepath.Base(path),
		Type:     DetectAttachmentType(mimeType),
		Metadata: map[string]any{"file_size": len(content), "source": "file"},
	}, nil
}

// AttachmentFromBase64 decodes data and builds an attachment. An empty MIME
// type is filled in by sniffing the decoded bytes.
func AttachmentFromBase64(data, mimeType, filename string) (Attachment, error) {
	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Attachment{}, fmt.Errorf("decode base64 attachment: %w", err)
	}

	if mimeType == "" {
		mimeType = normalizeMIME(mimetype.Detect(content).String())
	}

	return Attachment{
		Content:  content,
		MIMEType: mimeType,
		Filename: filename,
		Type:     DetectAttachmentType(mimeType),
		Metadata: map[string]any{"source": "base64"},
	}, nil
}

// ToBase64 returns the standard base64 encoding of the payload.
func (a Attachment) ToBase64() string {
	return base64.StdEncoding.EncodeToString(a.Content)
}

// DataURL renders the attachment for inline transport to a provider.
func (a Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, a.ToBase64())
}

// Text returns the payload as a string. Only valid for text attachments.
func (a Attachment) Text() (string, error) {
	if a.Type != AttachmentText {
		return "", fmt.Errorf("cannot extract text from %s attachment", a.Type)
	}
	return string(a.Content), nil
}

// normalizeMIME strips parameters such as "; charset=utf-8".
func normalizeMIME(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType)
}

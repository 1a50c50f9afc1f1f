package services

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"ekaai-backend/internal/models"
)

const (
	MaxUploadBytes = 20 << 20
	previewChars   = 280
)

var allowedUploadTypes = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
	".md":  "text/markdown",
}

// UploadInfo is what the content library records about an accepted upload.
type UploadInfo struct {
	ContentType string
	PageCount   int
	Preview     string
}

// InspectUpload checks an upload before it is forwarded to the content library.
// PDFs must parse and contain at least one page.
func InspectUpload(u *models.Upload) (*UploadInfo, error) {
	fields := make(map[string]string)
	if len(u.Data) == 0 {
		fields["file"] = "File is empty"
	} else if len(u.Data) > MaxUploadBytes {
		fields["file"] = "File exceeds the 20 MB limit"
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	contentType, ok := allowedUploadTypes[ext]
	if !ok {
		fields["file"] = "Only PDF, TXT and Markdown files are supported"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if ext != ".pdf" {
		if sniffed := http.DetectContentType(u.Data); !strings.HasPrefix(sniffed, "text/") {
			return nil, &ValidationError{Fields: map[string]string{"file": "File is not plain text"}}
		}
		return &UploadInfo{ContentType: contentType, Preview: preview(string(u.Data))}, nil
	}

	pages, text, err := readPDF(u.Data)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"file": "PDF could not be read"}}
	}
	if pages == 0 {
		return nil, &ValidationError{Fields: map[string]string{"file": "PDF has no pages"}}
	}
	return &UploadInfo{ContentType: contentType, PageCount: pages, Preview: preview(text)}, nil
}

func readPDF(data []byte) (int, string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage && b.Len() < previewChars; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return totalPage, b.String(), nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func preview(s string) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if len([]rune(s)) > previewChars {
		s = string([]rune(s)[:previewChars]) + "…"
	}
	return s
}

package resume

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTextPlain(t *testing.T) {
	t.Parallel()

	got, err := ExtractText(MimeText, []byte("Jane Doe  \r\n\r\n\r\n\r\nGo engineer\n"))
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if got != "Jane Doe\n\nGo engineer" {
		t.Fatalf("text = %q", got)
	}
}

func TestExtractTextDocx(t *testing.T) {
	t.Parallel()

	data := buildDocx(t, `<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p><w:p><w:r><w:t>Go &amp; Kubernetes</w:t></w:r></w:p>`)
	got, err := ExtractText(MimeDOCX, data)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if got != "Jane Doe\nGo & Kubernetes" {
		t.Fatalf("text = %q", got)
	}
}

func TestExtractTextRejectsUnknownType(t *testing.T) {
	t.Parallel()

	if _, err := ExtractText("image/png", []byte{0x89}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := ExtractText(MimePDF, []byte("not a pdf")); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}

func TestDetectMime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename, declared string
		data               []byte
		want               string
	}{
		{"cv.pdf", "application/octet-stream", nil, MimePDF},
		{"cv.bin", "application/pdf", nil, MimePDF},
		{"cv.docx", "", nil, MimeDOCX},
		{"cv", "", []byte("Jane Doe, engineer"), MimeText},
		{"cv", "", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "image/png"},
	}
	for _, tt := range tests {
		if got := DetectMime(tt.filename, tt.declared, tt.data); got != tt.want {
			t.Errorf("DetectMime(%q, %q) = %q, want %q", tt.filename, tt.declared, got, tt.want)
		}
	}
}

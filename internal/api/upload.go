package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
)

// Upload messages returned verbatim to the client.
const (
	msgFileTooLarge    = "File too large. Maximum size is 5MB."
	msgFileTypeInvalid = "Only PDF, DOCX or TXT files are allowed!"
	msgNoFile          = "No file uploaded"
)

const multipartOverhead = 64 << 10

type upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// readUpload reads one multipart file field of at most limit bytes.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64, tooLarge string) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return upload{}, errBadRequest("%s", tooLarge)
		}
		return upload{}, errBadRequest("invalid multipart body")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		return upload{}, errBadRequest("%s", msgNoFile)
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		return upload{}, errBadRequest("%s", tooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return upload{}, errBadRequest("failed to read upload")
	}
	if int64(len(data)) > limit {
		return upload{}, errBadRequest("%s", tooLarge)
	}
	return upload{
		Filename: header.Filename,
		MimeType: strings.TrimSpace(header.Header.Get("Content-Type")),
		Data:     data,
	}, nil
}

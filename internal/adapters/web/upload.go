package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"warehouse-ops/internal/app"
)

// isMultipart reports whether the request carries a file upload.
func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

// readUpload reads the "file" part of a multipart request of at most
// h.maxUpload bytes. Form values are available through r.FormValue afterwards.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*app.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "file too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeError(w, r, "invalid multipart body: "+err.Error(), "INVALID_INPUT", http.StatusBadRequest)
		return nil, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, errorResponse{Error: "file is required", Code: "INVALID_INPUT", Field: "file"})
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, "read upload: "+err.Error(), "INVALID_INPUT", http.StatusBadRequest)
		return nil, false
	}
	return &app.Upload{Filename: hdr.Filename, Data: data}, true
}

// decodeBodyOrUpload fills v from JSON, or returns the uploaded file for
// multipart requests. JSON bodies are capped at 1 MB.
func (h *Handler) decodeBodyOrUpload(w http.ResponseWriter, r *http.Request, v any) (*app.Upload, bool) {
	if isMultipart(r) {
		return h.readUpload(w, r)
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return nil, decodeJSON(w, r, v)
}

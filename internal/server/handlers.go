package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/invoice-ai/internal/ocr"
)

// maxUploadSize bounds multipart uploads (high-resolution phone photos)
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"error": message}
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessInvoice accepts a multipart "image" file or an "imageUrl" form field
func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	src, err := sourceFromRequest(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		case errors.Is(err, errNoImage):
			writeError(w, http.StatusBadRequest, "No image or imageUrl provided")
			return
		}
		slog.Error("Error reading invoice request", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	processor, err := s.processor()
	if err != nil {
		slog.Error("Pipeline unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	envelope := processor.Process(r.Context(), src)
	writeJSON(w, http.StatusOK, envelope)
}

var (
	errNoImage    = errors.New("no image or imageUrl provided")
	errNotHTTPURL = errors.New("imageUrl must be an http or https URL")
)

// sourceFromRequest prefers an uploaded file over a URL
func sourceFromRequest(r *http.Request) (ocr.Source, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return ocr.Source{}, err
		}
	} else if err := r.ParseForm(); err != nil {
		return ocr.Source{}, err
	}

	f, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return ocr.Source{}, err
		}
		if len(data) > 0 {
			return ocr.FromBytes(header.Filename, data), nil
		}
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return ocr.Source{}, err
	}

	imageURL := strings.TrimSpace(r.FormValue("imageUrl"))
	if imageURL == "" {
		return ocr.Source{}, errNoImage
	}
	src := ocr.ParseSource(imageURL)
	if src.Kind != ocr.SourceURL {
		return ocr.Source{}, errNotHTTPURL
	}
	return src, nil
}

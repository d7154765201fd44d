// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"mime"
	"net/http"
	"os"

	"github.com/gf3d/gf3dserver/internal/api/middleware"
)

// HDF5ContentType is the media type of subset downloads.
const HDF5ContentType = "application/x-hdf5"

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Text writes a plain text response with the given status code.
func Text(w http.ResponseWriter, r *http.Request, status int, body string) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// ClientError writes a "400 ..." message. Unless strict is set the message
// goes out with status 200, which is what existing clients expect.
func ClientError(w http.ResponseWriter, r *http.Request, strict bool, msg string) {
	middleware.SetOutcome(r.Context(), middleware.OutcomeRejected)
	status := http.StatusOK
	if strict {
		status = http.StatusBadRequest
	}
	Text(w, r, status, msg)
}

// Attachment streams f as a download named filename.
// Range and conditional requests are handled by http.ServeContent.
func Attachment(w http.ResponseWriter, r *http.Request, filename string, f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	setRequestID(w, r)
	w.Header().Set("Content-Type", HDF5ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, info.ModTime(), f)
	return nil
}

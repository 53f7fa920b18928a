package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/patient"
)

const maxBodyBytes = 1 << 20

var errPanic = errors.New("handler panic")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeProblem renders err in the problem shape. Internal errors are logged with the
// request id; their cause never reaches the client.
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	p := apperr.Describe(err)
	if p.Code == apperr.CodeInternal {
		log.Printf("internal error method=%s path=%s request_id=%s: %v",
			r.Method, r.URL.Path, GetRequestID(r.Context()), err)
	}
	writeJSON(w, p.HTTPStatusHint, p)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return patient.Field("body", fmt.Sprintf("must be at most %d bytes", maxBodyBytes))
	}
	return patient.Field("body", "must be valid JSON")
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, patient.Field(field, "must be a valid UUID")
	}
	return id, nil
}

func sessionOf(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

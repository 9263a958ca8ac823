package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/appointment"
)

const maxUploadBytes = 5 << 20

var errBadForm = errors.New("malformed form")

// parseForm accepts multipart and urlencoded bodies up to maxUploadBytes.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	return nil
}

// formImage returns the optional "image" file. The caller closes it.
func formImage(r *http.Request) (*account.Image, multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errBadForm, err)
	}
	return &account.Image{Name: hdr.Filename, Reader: f}, f, nil
}

// formAddress decodes the JSON-encoded address field; empty means absent.
func formAddress(raw string) (*appointment.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var addr appointment.Address
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return nil, fmt.Errorf("%w: address: %w", errBadForm, err)
	}
	return &addr, nil
}

func closeFile(f multipart.File) {
	if f != nil {
		_ = f.Close()
	}
}

// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data
// shared by the dashboard server and the reference API.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// MaxJSONBody bounds JSON request bodies.
	MaxJSONBody = 1 << 20
	// MaxUploadSize bounds multipart uploads.
	MaxUploadSize = 10 << 20
)

// ErrMissingFile is returned when a multipart request has no "file" part.
var ErrMissingFile = errors.New("no file part in request")

// DecodeJSON decodes a bounded JSON body into dst. Unknown fields are
// rejected so typos in settings patches surface as errors.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// FormFile returns the "file" part of a multipart request. The caller closes
// the returned file.
func FormFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, ErrMissingFile
		}
		return nil, nil, err
	}
	if sanitizeInput(hdr.Filename) == "" {
		f.Close()
		return nil, nil, errors.New("no selected file")
	}
	return f, hdr, nil
}

// ParseLimit reads a positive integer query parameter. Missing or invalid
// values yield def; values above max are clamped.
func ParseLimit(query url.Values, key string, def, max int) int {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// SanitizeFilename keeps the base name of an uploaded file and strips
// anything that could escape the upload directory.
func SanitizeFilename(name string) string {
	name = sanitizeInput(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

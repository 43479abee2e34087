package helpers

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	secChUa   = `"Chromium";v="124", "Brave";v="124", "Not-A.Brand";v="99"`

	// LandingPath is the public tender listing page holding the ministry filter
	LandingPath = "/Tenders/Public%20Tenders/"
)

// Headers is an immutable set of request headers. The zero value is empty.
type Headers struct {
	values map[string]string
}

// NewHeaders copies values into a new Headers
func NewHeaders(values map[string]string) Headers {
	h := Headers{values: make(map[string]string, len(values))}
	for k, v := range values {
		h.values[strings.ToLower(k)] = v
	}
	return h
}

// Get returns the value of a header, matched case-insensitively
func (h Headers) Get(name string) string {
	return h.values[strings.ToLower(name)]
}

// Len returns the number of headers
func (h Headers) Len() int {
	return len(h.values)
}

// Map returns a fresh copy safe for the caller to modify
func (h Headers) Map() map[string]string {
	out := make(map[string]string, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}

// PortalHeaders returns the browser-originated AJAX headers sent with every
// portal request. Origin and referer are derived from baseURL.
func PortalHeaders(baseURL string) Headers {
	baseURL = strings.TrimRight(baseURL, "/")
	return NewHeaders(map[string]string{
		"accept":             "application/json, text/javascript, */*; q=0.01",
		"accept-language":    "en-US,en;q=0.8",
		"content-type":       "application/json; charset=UTF-8",
		"origin":             baseURL,
		"priority":           "u=1, i",
		"referer":            baseURL + LandingPath,
		"sec-ch-ua":          secChUa,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-origin",
		"sec-gpc":            "1",
		"user-agent":         userAgent,
		"x-requested-with":   "XMLHttpRequest",
	})
}

// DecodeUTF8 converts a response body to UTF-8 using the Content-Type header
// and any meta charset declaration in the body.
func DecodeUTF8(body []byte, contentType string) (io.Reader, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	if strings.EqualFold(name, "utf-8") {
		return bytes.NewReader(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return &buf, nil
}

package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/docscout/internal/config"
)

// readBody decodes the response body to UTF-8 text.
// Content-Encoding is undone first, then at most maxBytes of decoded body
// are kept (zero means no limit), then the charset is converted.
// Oversized bodies are truncated rather than rejected.
func readBody(resp *http.Response, maxBytes int64) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	if maxBytes > 0 {
		reader = io.LimitReader(reader, maxBytes)
	}

	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("charset decode: %w", err)
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// isSoftFailure reports whether content is too short or looks like a
// login wall or error page. Signals are only searched near the top so that
// pages documenting authentication are not rejected.
func isSoftFailure(content string, minLength int) bool {
	if utf8.RuneCountInString(content) < minLength {
		return true
	}

	head := strings.ToLower(leadingRunes(content, config.SoftFailureWindow))
	for _, signal := range config.SoftFailureSignals {
		if strings.Contains(head, signal) {
			return true
		}
	}
	return false
}

// leadingRunes returns the first n characters of s.
func leadingRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// flattenHeaders keeps the first value of each response header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

package player

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorCategory classifies stream failures for logs, metrics and tile status.
type ErrorCategory int

const (
	ErrCategoryNetwork ErrorCategory = iota
	ErrCategoryAuth
	ErrCategoryCodec
	ErrCategoryUnknown
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryAuth:
		return "auth"
	case ErrCategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// StreamError is reported through Events.OnError when a run fails.
type StreamError struct {
	Category ErrorCategory
	// Detail is the tail of the decoder's diagnostics with credentials removed.
	Detail string
	Err    error
}

func (e *StreamError) Error() string {
	msg := fmt.Sprintf("stream %s error", e.Category)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *StreamError) Unwrap() error { return e.Err }

var (
	authKeywords = []string{
		"401", "403", "unauthorized", "forbidden", "authentication", "authorization failed",
	}
	networkKeywords = []string{
		"connection refused", "connection reset", "timed out", "timeout", "no route to host",
		"network is unreachable", "could not resolve", "name or service not known",
		"404", "not found", "broken pipe", "end of file",
	}
	codecKeywords = []string{
		"invalid data", "decoder", "codec", "could not find codec", "unsupported",
		"error while decoding", "non-existing pps", "no frame",
	}
)

// Classify maps decoder diagnostics to a category. Auth wins over network
// because ffmpeg reports a 401 together with a connection failure.
func Classify(diagnostics string) ErrorCategory {
	text := strings.ToLower(diagnostics)
	switch {
	case containsAny(text, authKeywords):
		return ErrCategoryAuth
	case containsAny(text, networkKeywords):
		return ErrCategoryNetwork
	case containsAny(text, codecKeywords):
		return ErrCategoryCodec
	}
	return ErrCategoryUnknown
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var userinfoPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.-]*://)[^/@\s'"]+@`)

// RedactText strips userinfo from every URL embedded in s. ffmpeg echoes
// its input URL in diagnostics.
func RedactText(s string) string {
	return userinfoPattern.ReplaceAllString(s, "$1")
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindAuth         ErrorKind = "auth"
	KindConnectivity ErrorKind = "connectivity"
	KindOther        ErrorKind = "other"
)

// GenerationError is the final failure of an answer generation call after retries.
type GenerationError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

var (
	authKeywords = []string{
		"401", "403", "unauthorized", "forbidden", "api key", "apikey", "api_key",
		"authentication", "permission",
	}
	connectivityKeywords = []string{
		"timeout", "timed out", "deadline", "connection refused", "connection reset",
		"no such host", "network", "eof", "502", "503", "504", "unavailable",
	}
)

func Classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return KindAuth
		case se.StatusCode == http.StatusBadGateway || se.StatusCode == http.StatusServiceUnavailable ||
			se.StatusCode == http.StatusGatewayTimeout:
			return KindConnectivity
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return KindConnectivity
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindConnectivity
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return KindAuth
		}
	}
	for _, kw := range connectivityKeywords {
		if strings.Contains(msg, kw) {
			return KindConnectivity
		}
	}
	return KindOther
}

package client

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory is a stable label for error classification in logs and metrics.
type ErrorCategory string

// The widget shows one generic message for every fetch failure; the category is what
// operators see in logs, /lookup responses and the lookup metrics.
const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryUpstream         ErrorCategory = "upstream"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

var sentinelCategories = []struct {
	err      error
	category ErrorCategory
}{
	{context.DeadlineExceeded, ErrorCategoryTimeout},
	{context.Canceled, ErrorCategoryTimeout},
	{ErrInvalidAPIKey, ErrorCategoryInvalidAPIKey},
	{ErrLocationNotFound, ErrorCategoryLocationNotFound},
	{ErrRateLimited, ErrorCategoryRateLimited},
	{ErrUpstreamFailure, ErrorCategoryUpstream},
	{ErrMalformedResponse, ErrorCategoryParsing},
}

// CategorizeError maps an error to a stable ErrorCategory. Order matters: a transport
// timeout is wrapped in ErrUnreachable but reports as timeout.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	for _, sc := range sentinelCategories {
		if errors.Is(err, sc.err) {
			return sc.category
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrUnreachable) {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryUnknown
}

// Unreachable reports whether err means the API could not be reached at all,
// as opposed to the API answering with a rejection.
func Unreachable(err error) bool {
	switch CategorizeError(err) {
	case ErrorCategoryTimeout, ErrorCategoryNetwork:
		return true
	}
	return false
}

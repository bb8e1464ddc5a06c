package catalogapi

import (
	"fmt"
	"time"
)

// Error classification of the Catalog API error taxonomy. Downstream
// branching uses errors.As on these variants, never string matching.

// FatalError indicates a non-retryable request failure such as invalid
// credentials or a rejected signature. A fatal error aborts the entire run.
type FatalError struct {
	Code    string
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("catalogapi: fatal %s: %s", e.Code, e.Message)
}

// ThrottledError indicates the provider rejected the call due to request
// rate. The client performs one bounded backoff before surfacing it.
type ThrottledError struct {
	Code    string
	Message string
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("catalogapi: throttled %s: %s", e.Code, e.Message)
}

// ItemError is a per-item failure inside an otherwise successful batch.
// The offending item is skipped and the batch continues.
type ItemError struct {
	ItemID  string
	Code    string
	Message string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("catalogapi: item %s: %s: %s", e.ItemID, e.Code, e.Message)
}

// QuotaExceededError indicates the daily request ceiling has been reached.
// The remainder of the current run is aborted without retrying.
type QuotaExceededError struct {
	Used    int64
	Ceiling int64
	Day     string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("catalogapi: daily quota exceeded: %d/%d requests on %s", e.Used, e.Ceiling, e.Day)
}

// CircuitOpenError indicates the circuit breaker is rejecting calls
// without attempting them.
type CircuitOpenError struct {
	OpenedAt   time.Time
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("catalogapi: circuit open since %s, retry after %s",
		e.OpenedAt.Format(time.RFC3339), e.RetryAfter)
}

// fatalErrorCodes are provider error codes that abort the run immediately
var fatalErrorCodes = map[string]bool{
	"InvalidSignature":    true,
	"IncompleteSignature": true,
	"UnrecognizedClient":  true,
	"InvalidPartnerTag":   true,
	"AccessDenied":        true,
	"MissingAuthentication": true,
}

// throttleErrorCodes are provider error codes that signal rate pressure
var throttleErrorCodes = map[string]bool{
	"TooManyRequests":  true,
	"RequestThrottled": true,
}

// classifyAPIError maps a provider error code onto the typed taxonomy.
// Codes outside the fatal and throttle sets are treated as per-item
// failures bound to the given item ID (empty for request-level errors).
func classifyAPIError(itemID, code, message string) error {
	switch {
	case fatalErrorCodes[code]:
		return &FatalError{Code: code, Message: message}
	case throttleErrorCodes[code]:
		return &ThrottledError{Code: code, Message: message}
	default:
		return &ItemError{ItemID: itemID, Code: code, Message: message}
	}
}

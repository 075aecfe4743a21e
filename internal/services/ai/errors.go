package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// APIError represents an error from the embedding provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 && !apiErr.IsPermanent
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}

	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing")
}

// ExtractAPIError extracts API error details from an error
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "429") {
		return nil
	}

	apiErr := &APIError{
		StatusCode: 429,
		Message:    errStr,
		Type:       "rate_limit_error",
	}

	// SDK errors often embed JSON details in the message
	if jsonStart := strings.Index(errStr, "{"); jsonStart != -1 {
		jsonStr := errStr[jsonStart:]
		if jsonEnd := strings.LastIndex(jsonStr, "}"); jsonEnd != -1 {
			jsonStr = jsonStr[:jsonEnd+1]
			var errorData struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			}
			if json.Unmarshal([]byte(jsonStr), &errorData) == nil {
				apiErr.Message = errorData.Message
				apiErr.Type = errorData.Type
				apiErr.Code = errorData.Code
				if errorData.Code == "insufficient_quota" {
					apiErr.IsPermanent = true
				}
			}
		}
	}

	retryAfter := 60 * time.Second
	if apiErr.IsPermanent {
		retryAfter = 1 * time.Hour
	}
	apiErr.RetryAfter = &retryAfter

	return apiErr
}

// GetRetryDelay calculates the delay before retrying based on error type
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := attempt
	if shift < 0 {
		shift = 0
	}
	if shift > 10 {
		shift = 10
	}
	shiftAmount := uint(shift)

	if IsQuotaError(err) {
		delay := time.Hour * time.Duration(1<<shiftAmount)
		if delay > 24*time.Hour {
			delay = 24 * time.Hour
		}
		return delay
	}

	if IsRateLimitError(err) {
		delay := 60 * time.Second * time.Duration(1<<shiftAmount)
		if delay > 15*time.Minute {
			delay = 15 * time.Minute
		}
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil {
			if *apiErr.RetryAfter > delay {
				delay = *apiErr.RetryAfter
			}
		}
		return delay
	}

	delay := 5 * time.Second * time.Duration(1<<shiftAmount)
	if delay > 5*time.Minute {
		delay = 5 * time.Minute
	}
	return delay
}

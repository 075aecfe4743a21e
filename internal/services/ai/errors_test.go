package ai

import (
	"errors"
	"testing"
	"time"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"429 in message", errors.New("request failed with status 429"), true},
		{"rate limit in message", errors.New("rate limit exceeded"), true},
		{"api error 429", &APIError{StatusCode: 429}, true},
		{"api error 429 permanent", &APIError{StatusCode: 429, IsPermanent: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"insufficient quota", errors.New("error: insufficient_quota"), true},
		{"api error permanent", &APIError{IsPermanent: true}, true},
		{"api error quota code", &APIError{Code: "insufficient_quota"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaError(tt.err); got != tt.want {
				t.Errorf("IsQuotaError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractAPIErrorWithJSON(t *testing.T) {
	err := errors.New(`429 {"message": "quota used up", "type": "insufficient_quota", "code": "insufficient_quota"}`)

	apiErr := ExtractAPIError(err)
	if apiErr == nil {
		t.Fatal("expected API error, got nil")
	}
	if !apiErr.IsPermanent {
		t.Error("expected quota error to be permanent")
	}
	if apiErr.RetryAfter == nil || *apiErr.RetryAfter != time.Hour {
		t.Error("expected 1 hour retry delay for quota error")
	}
}

func TestGetRetryDelayCaps(t *testing.T) {
	rateErr := errors.New("429 too many requests")
	if d := GetRetryDelay(rateErr, 100); d != 15*time.Minute {
		t.Errorf("expected rate limit delay capped at 15m, got %v", d)
	}

	quotaErr := &APIError{IsPermanent: true}
	if d := GetRetryDelay(quotaErr, 100); d != 24*time.Hour {
		t.Errorf("expected quota delay capped at 24h, got %v", d)
	}

	otherErr := errors.New("transient")
	if d := GetRetryDelay(otherErr, 0); d != 5*time.Second {
		t.Errorf("expected 5s base delay, got %v", d)
	}
}

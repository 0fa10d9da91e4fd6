package internal

import (
	"strings"
	"testing"
)

func TestDouyinError_Error(t *testing.T) {
	err := NewEntityNotFoundError("user", "MS4wLjABAAAAabc")

	result := err.Error()

	if !strings.Contains(result, "douyin error") {
		t.Error("Error message should contain 'douyin error'")
	}
	if !strings.Contains(result, "404") {
		t.Error("Error message should contain error code")
	}
	if !strings.Contains(result, "EntityNotFound") {
		t.Error("Error message should contain error type")
	}
	if !strings.Contains(result, "user not found") {
		t.Error("Error message should contain the message")
	}
}

func TestDouyinError_DetailedError(t *testing.T) {
	err := NewDouyinError(429, "Rate limit exceeded", ErrRateLimit).
		WithURL("https://www.douyin.com/aweme/v1/web/aweme/post/").
		WithRetryAfter(60).
		WithContext("attempts", 3)

	result := err.DetailedError()

	if !strings.Contains(result, "WARNING") {
		t.Error("Detailed error should contain severity")
	}
	if !strings.Contains(result, "RateLimit Error") {
		t.Error("Detailed error should contain error type")
	}
	if !strings.Contains(result, "Code: 429") {
		t.Error("Detailed error should contain error code")
	}
	if !strings.Contains(result, "Rate limit exceeded") {
		t.Error("Detailed error should contain message")
	}
	if !strings.Contains(result, "Retry after: 60 seconds") {
		t.Error("Detailed error should contain retry information")
	}
	if !strings.Contains(result, "attempts=3") {
		t.Error("Detailed error should contain context")
	}
	if !strings.Contains(result, "Suggestion:") {
		t.Error("Detailed error should contain suggestion")
	}

	if !strings.Contains(result, "douyin.com/aweme/v1/web/aweme/post") {
		t.Error("URL should be present in detailed error")
	}
}

func TestDouyinError_URLRedaction(t *testing.T) {
	err := NewDouyinError(403, "Forbidden", ErrInvalidResponse).
		WithURL("https://www.douyin.com/aweme/v1/web/aweme/post/?msToken=secret123&count=20")

	result := err.DetailedError()

	if strings.Contains(result, "secret123") {
		t.Error("Detailed error must not leak query parameters")
	}
	if !strings.Contains(result, "[REDACTED]") {
		t.Error("Query string should be redacted")
	}
}

func TestDouyinError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		code      int
		retryable bool
	}{
		{"network_timeout", ErrNetworkTimeout, 408, true},
		{"rate_limit", ErrRateLimit, 429, true},
		{"invalid_url", ErrInvalidURL, 400, false},
		{"auth_required", ErrAuthRequired, 401, false},
		{"entity_not_found", ErrEntityNotFound, 404, false},
		{"missing_media", ErrMissingMedia, 422, false},
		{"server_error", ErrInvalidResponse, 500, true},
		{"client_error", ErrInvalidResponse, 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDouyinError(tt.code, "test", tt.errorType)
			if got := err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationErrorWithValue("thread", "must be between 1 and 32", 64).
		WithSuggestion("Use a value between 1 and 32")

	result := err.Error()

	if !strings.Contains(result, "validation error for thread") {
		t.Error("Error should name the field")
	}
	if !strings.Contains(result, "must be between 1 and 32") {
		t.Error("Error should contain the message")
	}
	if !strings.Contains(result, "Suggestion:") {
		t.Error("Error should contain the suggestion")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults_valid", func(c *Config) {}, false},
		{"zero_retries", func(c *Config) { c.RetryTimes = 0 }, true},
		{"negative_retries", func(c *Config) { c.RetryTimes = -1 }, true},
		{"too_many_threads", func(c *Config) { c.Threads = 64 }, true},
		{"zero_threads", func(c *Config) { c.Threads = 0 }, true},
		{"unknown_mode", func(c *Config) { c.Modes = []string{"bogus"} }, true},
		{"no_modes", func(c *Config) { c.Modes = nil }, true},
		{"bad_start_time", func(c *Config) { c.StartTime = "2024/01/01" }, true},
		{"good_window", func(c *Config) { c.StartTime = "2024-01-01"; c.EndTime = "2024-06-30" }, false},
		{"end_time_now", func(c *Config) { c.EndTime = "now" }, false},
		{"inverted_window", func(c *Config) { c.StartTime = "2024-06-30"; c.EndTime = "2024-01-01" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_TimeWindowInclusive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartTime = "2024-01-10"
	cfg.EndTime = "2024-01-10"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	from, hasFrom, to, hasTo := cfg.TimeWindow()
	if !hasFrom || !hasTo {
		t.Fatal("expected both bounds set")
	}
	// A single-day window must cover the whole day
	if !to.After(from) {
		t.Errorf("end of window (%v) should be after start (%v)", to, from)
	}
	if to.Sub(from) < 23*60*60*1e9 {
		t.Errorf("window too narrow: %v", to.Sub(from))
	}
}

package internal

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func TestSecureLogger_RedactSensitiveData(t *testing.T) {
	logger := NewDefaultLogger(false, false)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "redact_mstoken_cookie",
			input:    "msToken=abc123def; other=value",
			expected: "msToken=[REDACTED]; other=value",
		},
		{
			name:     "redact_sessionid_cookie",
			input:    "Set-Cookie: sessionid=xyz789; Path=/",
			expected: "Set-Cookie: sessionid=[REDACTED]; Path=/",
		},
		{
			name:     "redact_signing_parameter",
			input:    "https://www.douyin.com/aweme/v1/web/aweme/post/?X-Bogus=DFSzsw&count=20",
			expected: "https://www.douyin.com/aweme/v1/web/aweme/post/?X-Bogus=[REDACTED]&count=20",
		},
		{
			name:     "multiple_sensitive_items",
			input:    "ttwid=1abc; msToken=def456",
			expected: "ttwid=[REDACTED]; msToken=[REDACTED]",
		},
		{
			name:     "no_sensitive_data",
			input:    "This is a normal log message",
			expected: "This is a normal log message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.redactSensitiveData(tt.input)
			if result != tt.expected {
				t.Errorf("redactSensitiveData() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSecureLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelWarn, false, false)

	// Test that debug and info messages are not logged when level is WARN
	logger.Debug("debug message")
	logger.Info("info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should not be logged when level is WARN")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should not be logged when level is WARN")
	}

	// Test that warn and error messages are logged
	buf.Reset()
	logger.Warn("warn message")
	logger.Error("error message")

	output = buf.String()
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be logged when level is WARN")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be logged when level is WARN")
	}
}

func TestSecureLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, true) // quiet mode enabled

	// In quiet mode, only error messages should be logged
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if output != "" {
		t.Errorf("No messages should be logged in quiet mode except errors, got: %s", output)
	}

	// Error messages should still be logged
	logger.Error("error message")
	output = buf.String()
	if !strings.Contains(output, "error message") {
		t.Error("Error messages should be logged even in quiet mode")
	}
}

func TestSecureLogger_DebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true, false) // debug mode enabled

	logger.Info("test message")

	output := buf.String()
	// In debug mode, messages should include file and line information
	hasFileInfo := strings.Contains(output, ".go:") || strings.Contains(output, "logger_test.go:")
	if !hasFileInfo {
		t.Errorf("Debug mode should include file and line information, got: %s", output)
	}
}

func TestSecureLogger_HTTPRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true, false)

	req, _ := http.NewRequest("GET", "https://www.douyin.com/aweme/v1/web/aweme/post/?a_bogus=secret123", nil)
	req.Header.Set("Cookie", "msToken=secret789; ttwid=secret456")
	req.Header.Set("User-Agent", "TestAgent/1.0")
	req.Header.Set("Referer", "https://www.douyin.com/")

	logger.LogHTTPRequest(req)

	output := buf.String()

	// Check that sensitive data is redacted
	if strings.Contains(output, "secret123") {
		t.Error("Signing parameter should be redacted")
	}
	if strings.Contains(output, "secret789") || strings.Contains(output, "secret456") {
		t.Error("Cookie header should be redacted")
	}

	// Check that non-sensitive data is preserved
	if !strings.Contains(output, "TestAgent/1.0") {
		t.Error("User-Agent should be preserved")
	}
	if !strings.Contains(output, "[REDACTED]") {
		t.Error("Redacted placeholder should be present")
	}
}

func TestSecureLogger_IsSensitiveHeader(t *testing.T) {
	logger := NewDefaultLogger(false, false)

	tests := []struct {
		header    string
		sensitive bool
	}{
		{"Authorization", true},
		{"Cookie", true},
		{"Set-Cookie", true},
		{"X-Auth-Token", true},
		{"X-API-Key", true},
		{"User-Agent", false},
		{"Content-Type", false},
		{"Referer", false},
		{"COOKIE", true}, // case insensitive
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			result := logger.isSensitiveHeader(tt.header)
			if result != tt.sensitive {
				t.Errorf("isSensitiveHeader(%q) = %v, want %v", tt.header, result, tt.sensitive)
			}
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelError, "ERROR"},
		{LogLevelWarn, "WARN"},
		{LogLevelInfo, "INFO"},
		{LogLevelDebug, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.level.String()
			if result != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCookieRedactor_Redact(t *testing.T) {
	redactor := &CookieRedactor{}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "mstoken_cookie",
			input:    "msToken=1234567890abcdef",
			expected: "msToken=[REDACTED]",
		},
		{
			name:     "odin_tt_cookie",
			input:    "odin_tt=abcdef1234567890",
			expected: "odin_tt=[REDACTED]",
		},
		{
			name:     "sid_tt_with_semicolon",
			input:    "sid_tt=secret123; Path=/",
			expected: "sid_tt=[REDACTED]; Path=/",
		},
		{
			name:     "no_sensitive_data",
			input:    "User-Agent: Mozilla/5.0",
			expected: "User-Agent: Mozilla/5.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactor.Redact(tt.input)
			if result != tt.expected {
				t.Errorf("CookieRedactor.Redact() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestURLRedactor_Redact(t *testing.T) {
	redactor := &URLRedactor{}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "a_bogus_parameter",
			input:    "https://www.douyin.com/aweme/v1/web/aweme/detail/?a_bogus=secret123&aweme_id=7001",
			expected: "https://www.douyin.com/aweme/v1/web/aweme/detail/?a_bogus=[REDACTED]&aweme_id=7001",
		},
		{
			name:     "verifyfp_parameter",
			input:    "https://www.douyin.com/video/7001?verifyFp=abc123",
			expected: "https://www.douyin.com/video/7001?verifyFp=[REDACTED]",
		},
		{
			name:     "token_parameter",
			input:    "https://api.example.com/data?token=abc123",
			expected: "https://api.example.com/data?token=[REDACTED]",
		},
		{
			name:     "no_sensitive_parameters",
			input:    "https://www.douyin.com/aweme/v1/web/aweme/post/?count=20&max_cursor=0",
			expected: "https://www.douyin.com/aweme/v1/web/aweme/post/?count=20&max_cursor=0",
		},
		{
			name:     "token_not_matched_inside_mstoken",
			input:    "msToken=[REDACTED]; other=value",
			expected: "msToken=[REDACTED]; other=value",
		},
		{
			name:     "semicolon_terminates_value",
			input:    "Cookie fragment token=abc123; theme=dark",
			expected: "Cookie fragment token=[REDACTED]; theme=dark",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactor.Redact(tt.input)
			if result != tt.expected {
				t.Errorf("URLRedactor.Redact() = %q, want %q", result, tt.expected)
			}
		})
	}
}

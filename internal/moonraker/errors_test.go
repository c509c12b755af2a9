package moonraker

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

// timeoutError implements net.Error with Timeout() = true
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{
			name: "timeout",
			err: &url.Error{Op: "Get", URL: "http://192.168.1.40:7125", Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: &timeoutError{},
			}},
			want: ErrTypeTimeout,
		},
		{
			name: "connection refused",
			err: &url.Error{Op: "Get", URL: "http://192.168.1.40:7125", Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED,
			}},
			want: ErrTypeConnectionRefused,
		},
		{
			name: "host unreachable",
			err: &net.OpError{
				Op: "dial", Net: "tcp", Err: syscall.EHOSTUNREACH,
			},
			want: ErrTypeNetwork,
		},
		{
			name: "plain error",
			err:  errors.New("something broke"),
			want: ErrTypeNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devErr := ClassifyNetworkError(tt.err, "192.168.1.40")
			if devErr == nil {
				t.Fatal("Expected DeviceError, got nil")
			}
			if devErr.Type != tt.want {
				t.Errorf("Type = %v, want %v", devErr.Type, tt.want)
			}
			if devErr.Address != "192.168.1.40" {
				t.Errorf("Address = %q", devErr.Address)
			}
			if !IsNetworkError(devErr) {
				t.Error("IsNetworkError should be true for transport failures")
			}
		})
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if ClassifyNetworkError(nil, "x") != nil {
		t.Error("ClassifyNetworkError(nil) should return nil")
	}
}

func TestDeviceError_Wrapping(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := fmt.Errorf("fetching totals: %w", NewParseError("invalid JSON", "http://10.0.0.5:7125", cause))

	if !IsParseError(err) {
		t.Error("IsParseError should see through fmt.Errorf wrapping")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the underlying cause")
	}
	if IsHTTPError(err) || IsShapeError(err) || IsNetworkError(err) {
		t.Error("parse error misclassified")
	}

	msg := err.Error()
	if !strings.Contains(msg, "Parse Error (http://10.0.0.5:7125)") || !strings.Contains(msg, "unexpected EOF") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestHelpersOnForeignErrors(t *testing.T) {
	err := errors.New("plain")
	if IsNetworkError(err) || IsHTTPError(err) || IsParseError(err) || IsShapeError(err) {
		t.Error("helpers should be false for non-DeviceError values")
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused}, "7125"},
		{"unauthorized", NewHTTPError(401, "x"), "trusted clients"},
		{"history missing", NewHTTPError(404, "x"), "[history]"},
		{"server error", NewHTTPError(500, "x"), "HTTP error 500"},
		{"shape", NewShapeError("no result", "x"), "not a Moonraker response"},
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "did not answer in time"},
		{"foreign", errors.New("boom"), "unexpected error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetTroubleshootingHint(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("hint = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrTypeShape.String() != "Unexpected Response" {
		t.Errorf("ErrTypeShape.String() = %q", ErrTypeShape.String())
	}
	if got := ErrorType(99).String(); got != "ErrorType(99)" {
		t.Errorf("unknown type String() = %q", got)
	}
}

package moonraker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/muurk/fleethelm/internal/urls"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (unreachable, reset, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the request did not finish within its deadline
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the port
	ErrTypeConnectionRefused
	// ErrTypeHTTP indicates a non-2xx status code
	ErrTypeHTTP
	// ErrTypeParse indicates the body was not valid JSON
	ErrTypeParse
	// ErrTypeShape indicates valid JSON that lacks the expected fields
	ErrTypeShape
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeShape:
		return "Unexpected Response"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to one printer.
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Address    string    // Printer address or base URL, for context
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	prefix := e.Type.String()
	if e.Address != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Address)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error to a DeviceError.
func ClassifyNetworkError(err error, address string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &DeviceError{
			Type:    ErrTypeTimeout,
			Message: "request timed out",
			Address: address,
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &DeviceError{
			Type:    ErrTypeConnectionRefused,
			Message: "connection refused",
			Address: address,
			Err:     err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, address)
	}

	return &DeviceError{
		Type:    ErrTypeNetwork,
		Message: "network error",
		Address: address,
		Err:     err,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(statusCode int, address string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		Address:    address,
	}
}

// NewParseError creates a parsing error
func NewParseError(message, address string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Address: address,
		Err:     err,
	}
}

// NewShapeError reports JSON that decoded but did not carry the expected fields.
func NewShapeError(message, address string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeShape,
		Message: message,
		Address: address,
	}
}

func typeOf(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a network error (including timeout and connection refused)
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused)
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeParse
}

// IsShapeError checks if an error is a response-shape error
func IsShapeError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeShape
}

// GetTroubleshootingHint returns operator-facing advice for an error
func GetTroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The printer did not answer in time.",
			"Troubleshooting:",
			"  • Check that the printer host is powered on",
			"  • Busy hosts can be slow during heavy prints; rerun the command",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"Nothing is listening on that port.",
			"Troubleshooting:",
			"  • Moonraker normally listens on 7125; proxies use 80 or 4408",
			"  • Pass the right ports with --ports",
			"  • Install guide: " + urls.MoonrakerInstall,
		}, "\n")

	case ErrTypeHTTP:
		if devErr.StatusCode == 401 || devErr.StatusCode == 403 {
			return strings.Join([]string{
				fmt.Sprintf("The printer rejected the request (HTTP %d).", devErr.StatusCode),
				"Add this machine to Moonraker's trusted clients:",
				"  " + urls.MoonrakerTrustedClients,
			}, "\n")
		}
		if devErr.StatusCode == 404 {
			return strings.Join([]string{
				"The printer does not expose this endpoint.",
				"History requires the [history] section in moonraker.conf:",
				"  " + urls.MoonrakerHistoryAPI,
			}, "\n")
		}
		return fmt.Sprintf("The printer returned HTTP error %d.", devErr.StatusCode)

	case ErrTypeParse, ErrTypeShape:
		return strings.Join([]string{
			"The printer answered with something that is not a Moonraker response.",
			"Another web service may be running on that port.",
		}, "\n")

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check that you are on the same network as the printer",
			"  • Printers missing from the neighbor table are not scanned: " + urls.NeighborTable,
		}, "\n")
	}
}

package platform

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeInvalidMusicID         = 40001
	CodeMissingPermission      = 40002
	CodeExpiredToken           = 40003
	CodeGeoRestricted          = 40004
	CodeInsufficientPermission = 40300
	CodeServiceUnavailable     = 50000
	CodeTimeout                = -1
)

// APIError is a failed platform call.
type APIError struct {
	Code    int
	Message string
	LogID   string
}

func (e *APIError) Error() string {
	if e.LogID == "" {
		return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s (log_id=%s)", e.Code, e.Message, e.LogID)
}

// CodeOf extracts the platform code of err.
func CodeOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// Classification is the user-facing reading of an error code.
type Classification struct {
	Explanation     string
	Action          string
	Retryable       bool
	RetrySuggestion string
	// RefreshFirst means the credential must be renewed before retrying.
	RefreshFirst bool
}

var classifications = map[int]Classification{
	CodeInvalidMusicID: {
		Explanation:     "The music ID you provided is invalid or not accessible.",
		Action:          "Please check the music ID or choose different music.",
		Retryable:       true,
		RetrySuggestion: "Retry with a valid music ID after verification",
	},
	CodeMissingPermission: {
		Explanation:     "Your TikTok App does not have the required permissions.",
		Action:          "Contact your TikTok Ads administrator to grant ads.manage scope.",
		RetrySuggestion: "Cannot retry until permissions are fixed",
	},
	CodeExpiredToken: {
		Explanation:     "Your access token has expired or is invalid.",
		Action:          "Please re-authenticate your TikTok Ads account.",
		Retryable:       true,
		RetrySuggestion: "Retry after refreshing your access token",
		RefreshFirst:    true,
	},
	CodeGeoRestricted: {
		Explanation:     "TikTok Ads API is not available in your region.",
		Action:          "Use a VPN or contact TikTok support for regional access.",
		RetrySuggestion: "Cannot retry from this geographic location",
	},
	CodeInsufficientPermission: {
		Explanation:     "Your account has insufficient permissions.",
		Action:          "Contact your TikTok Ads account administrator.",
		RetrySuggestion: "Cannot retry until the account role is changed",
	},
	CodeServiceUnavailable: {
		Explanation:     "TikTok Ads API is experiencing temporary issues.",
		Action:          "Please try again in a few minutes.",
		Retryable:       true,
		RetrySuggestion: "Retry after 5-10 minutes",
	},
	CodeTimeout: {
		Explanation:     "The TikTok Ads API did not answer in time.",
		Action:          "Check your network connection and try again.",
		Retryable:       true,
		RetrySuggestion: "Retry with the same parameters",
	},
}

var defaultClassification = Classification{
	Explanation:     "An unknown error occurred with the TikTok API.",
	Action:          "Please check your input and try again. Contact support if issue persists.",
	Retryable:       true,
	RetrySuggestion: "Retry with the same parameters",
}

// Classify maps a code to its classification; unknown codes are retryable.
func Classify(code int) Classification {
	if c, ok := classifications[code]; ok {
		return c
	}
	return defaultClassification
}

// IsTimeout reports whether err came from a deadline on the call.
func IsTimeout(err error) bool {
	if code, ok := CodeOf(err); ok {
		return code == CodeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents transient network or render failures
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeBrowser represents failures to launch or drive the headless browser
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeParsing represents HTML parsing errors and selector mismatches
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeDelivery represents publisher-related errors
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeStore represents seen-store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// NoticeError represents an error raised while fetching or delivering notices
type NoticeError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *NoticeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *NoticeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth a second attempt in the same cycle
func (e *NoticeError) IsRetryable() bool {
	return e.Type == ErrorTypeFetch
}

// New creates a new NoticeError
func New(errType ErrorType, source, message string, err error) *NoticeError {
	return &NoticeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(source, message string, err error) *NoticeError {
	return New(ErrorTypeFetch, source, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(source, message string, err error) *NoticeError {
	return New(ErrorTypeBrowser, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *NoticeError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewDelivery creates a new delivery error
func NewDelivery(source, message string, err error) *NoticeError {
	return New(ErrorTypeDelivery, source, message, err)
}

// NewStore creates a new seen-store error
func NewStore(source, message string, err error) *NoticeError {
	return New(ErrorTypeStore, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *NoticeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first NoticeError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var ne *NoticeError
	if stderrors.As(err, &ne) {
		return ne.Type
	}
	return ""
}

// IsRetryable reports whether err wraps a retryable NoticeError
func IsRetryable(err error) bool {
	var ne *NoticeError
	if stderrors.As(err, &ne) {
		return ne.IsRetryable()
	}
	return false
}

package navigator

import (
	"errors"
	"fmt"
)

const (
	CodeSession     = "SESSION_ERROR"
	CodeNavigation  = "NAVIGATION_ERROR"
	CodeBrowser     = "BROWSER_ERROR"
	CodeScript      = "SCRIPT_ERROR"
	CodeValidation  = "VALIDATION"
	CodeTabMissing  = "TAB_NOT_FOUND"
	CodeShotMissing = "SCREENSHOT_NOT_FOUND"
	CodeAIService   = "AI_SERVICE_ERROR"
)

// CodedError is a typed error used for stable CLI and API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// NewError builds a CodedError for collaborators outside this package.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// CodeOf returns the code of the first CodedError in err's chain.
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func IsSessionError(err error) bool    { return CodeOf(err) == CodeSession }
func IsNavigationError(err error) bool { return CodeOf(err) == CodeNavigation }

// IsBrowserError reports any remote-automation failure. Navigation and
// session failures are browser errors too.
func IsBrowserError(err error) bool {
	switch CodeOf(err) {
	case CodeBrowser, CodeNavigation, CodeSession:
		return true
	}
	return false
}

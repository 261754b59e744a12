package llm

import (
	"errors"
	"fmt"
)

// Failure tags attached by provider adapters. Downstream classification works
// on these plus the raw message, never on provider exception types.
const (
	TagResourceExhausted = "resource_exhausted"
	TagUnavailable       = "unavailable"
	TagAPIError          = "api_error"
)

// BackendError is the structured failure every backend adapter returns.
type BackendError struct {
	Tag     string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

// Describe extracts the message and tag from any backend failure. Errors that
// are not a BackendError keep their message and get an empty tag.
func Describe(err error) (message, tag string) {
	if err == nil {
		return "", ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Message, be.Tag
	}
	return err.Error(), ""
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrForbidden      = errors.New("forbidden")
	ErrNoMatchingRoot = errors.New("no matching library root")
	ErrFilesystem     = errors.New("filesystem failure")
	ErrStore          = errors.New("store failure")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
)

// Kind is the stable error classification reported across IPC and CLI
// boundaries where the sentinel itself cannot travel.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidState   Kind = "invalid_state"
	KindForbidden      Kind = "forbidden"
	KindNoMatchingRoot Kind = "no_matching_root"
	KindFilesystem     Kind = "filesystem_failure"
	KindStore          Kind = "store_failure"
	KindValidation     Kind = "validation"
	KindConfiguration  Kind = "configuration"
	KindInternal       Kind = "internal"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStore
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the kind caller-facing surfaces should report.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNoMatchingRoot):
		return KindNoMatchingRoot
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

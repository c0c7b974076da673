// Package storage persists the site document through interchangeable adapters.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

// Adapter saves and loads the single site document.
type Adapter interface {
	Save(ctx context.Context, doc content.SiteDocument) (content.SaveReceipt, error)
	// Load returns nil without error when nothing has been stored.
	Load(ctx context.Context) (*content.SiteDocument, error)
}

// ErrorKind classifies storage failures.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "unknown"
	KindNetwork       ErrorKind = "network"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
)

// Error is returned by every adapter in this package.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("storage %s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of a storage error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var storageErr *Error
	if errors.As(err, &storageErr) {
		return storageErr.Kind
	}
	return KindUnknown
}

// IsQuotaExceeded reports whether err is a capacity failure.
func IsQuotaExceeded(err error) bool {
	var storageErr *Error
	return errors.As(err, &storageErr) && storageErr.Kind == KindQuotaExceeded
}

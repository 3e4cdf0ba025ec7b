// Package apperr provides centralized, categorized error handling used
// throughout dolphinwatch. It is a drop-in complement to the standard
// errors package: errors.Is/As/Unwrap/Join all work transparently on
// wrapped values.
package apperr

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Category groups errors for logging and for orchestrator policy
// decisions (retry vs. drop vs. fatal).
type Category string

const (
	CategoryConfig      Category = "configuration"
	CategoryNetwork     Category = "network"
	CategoryRingProto   Category = "ring-protocol"
	CategoryRingDown    Category = "ring-unreachable"
	CategoryInference   Category = "inference"
	CategoryDSP         Category = "dsp-numeric"
	CategoryPersistence Category = "persistence-io"
	CategoryGeneric     Category = "generic"
)

// Kind further refines a Category into the specific taxonomy entries
// named in the error-handling design (timeouts, protocol violations,
// parse failures, ...).
type Kind string

const (
	KindProtocol    Kind = "protocol"
	KindUnreachable Kind = "unreachable"
	KindTimeout     Kind = "timeout"
	KindParse       Kind = "parse"
	KindIO          Kind = "io"
	KindNumeric     Kind = "numeric"
	KindInvariant   Kind = "invariant"
)

// Error wraps an underlying error with a category, kind, and free-form
// context, so the orchestrator can apply policy (retry/skip/fatal)
// without string-matching error messages.
type Error struct {
	Err       error
	Category  Category
	Kind      Kind
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Category == other.Category && e.Kind == other.Kind
	}
	return errors.Is(e.Err, target)
}

// WithContext returns the context map, safe for concurrent readers.
func (e *Error) WithContext() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.Context))
	for k, v := range e.Context {
		out[k] = v
	}
	return out
}

// Builder provides a fluent interface for constructing *Error values.
type Builder struct {
	err      error
	category Category
	kind     Kind
	context  map[string]any
}

// New starts building an Error from an existing error.
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf starts building an Error from a formatted message.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

func (b *Builder) Category(c Category) *Builder {
	b.category = c
	return b
}

func (b *Builder) Kind(k Kind) *Builder {
	b.kind = k
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

func (b *Builder) Build() *Error {
	category := b.category
	if category == "" {
		category = CategoryGeneric
	}
	return &Error{
		Err:       b.err,
		Category:  category,
		Kind:      b.kind,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// Convenience constructors for the taxonomy named in the error design.

// RingProtocol wraps a malformed-reply/short-read/short-write error from
// the ring client.
func RingProtocol(err error) *Error {
	return New(err).Category(CategoryRingProto).Kind(KindProtocol).Build()
}

// RingUnreachable wraps a connection-refused error from the ring client.
func RingUnreachable(err error) *Error {
	return New(err).Category(CategoryRingDown).Kind(KindUnreachable).Build()
}

// InferenceTimeout wraps a deadline-exceeded error from the inference
// client.
func InferenceTimeout(err error) *Error {
	return New(err).Category(CategoryInference).Kind(KindTimeout).Build()
}

// InferenceProtocol wraps an ACK/framing violation from the inference
// client.
func InferenceProtocol(err error) *Error {
	return New(err).Category(CategoryInference).Kind(KindProtocol).Build()
}

// InferenceParse wraps a malformed score-payload error.
func InferenceParse(err error) *Error {
	return New(err).Category(CategoryInference).Kind(KindParse).Build()
}

// DSPNumeric wraps a degraded-but-non-fatal DSP condition (empty band,
// FFT shape mismatch, zero-length input).
func DSPNumeric(err error) *Error {
	return New(err).Category(CategoryDSP).Kind(KindNumeric).Build()
}

// PersistenceIO wraps a filesystem error while writing a detection
// record.
func PersistenceIO(err error) *Error {
	return New(err).Category(CategoryPersistence).Kind(KindIO).Build()
}

// IsCategory reports whether err is (or wraps) an *Error of category c.
func IsCategory(err error, c Category) bool {
	var e *Error
	return errors.As(err, &e) && e.Category == c
}

// IsKind reports whether err is (or wraps) an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// Standard-library passthroughs so callers never need to import both
// packages.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// NewStd is a passthrough to errors.New, named for symmetry with New.
func NewStd(text string) error {
	return errors.New(text)
}

// Package ucm implements the Unified Content Model engine: a graph-shaped
// document store with a transactional operation language, versioned
// snapshots, and a deterministic canonical fingerprint.
//
// A Document is a rooted tree of typed Blocks augmented with a secondary
// edge graph for semantic cross-references. Every mutation flows through
// Engine.Execute or Engine.ExecuteAtomic, which apply one or more Operation
// values, validate the result, and either commit or roll back to the
// pre-image.
package ucm

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an Error, stable across versions so
// callers can branch on it with errors.Is.
type Kind string

// Error kinds, matching the wire codes in the diagnostics and error
// sections of the UCM specification.
const (
	KindBlockNotFound      Kind = "BlockNotFound"
	KindParentNotFound     Kind = "ParentNotFound"
	KindInvalidBlockID     Kind = "InvalidBlockId"
	KindCycleDetected      Kind = "CycleDetected"
	KindPathNotFound       Kind = "PathNotFound"
	KindTypeMismatch       Kind = "TypeMismatch"
	KindNumericRangeError  Kind = "NumericRangeError"
	KindInvalidOperation   Kind = "InvalidOperation"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindInvalidIndex       Kind = "InvalidIndex"
	KindSnapshotExists     Kind = "SnapshotExists"
	KindSnapshotNotFound   Kind = "SnapshotNotFound"
	KindValidationFailed   Kind = "ValidationFailed"
	KindSerializationError Kind = "SerializationError"
	KindNotImplemented     Kind = "NotImplemented"
)

// wireCode maps a Kind to the "UCMxxxx" code used on the diagnostics wire
// form (spec §6). Codes are stable once assigned; never renumber.
var wireCode = map[Kind]string{
	KindBlockNotFound:      "UCM1001",
	KindParentNotFound:     "UCM1002",
	KindInvalidBlockID:     "UCM1003",
	KindCycleDetected:      "UCM1004",
	KindPathNotFound:       "UCM1005",
	KindTypeMismatch:       "UCM1006",
	KindNumericRangeError:  "UCM1007",
	KindInvalidOperation:   "UCM1008",
	KindInvalidArgument:    "UCM1009",
	KindInvalidIndex:       "UCM1010",
	KindSnapshotExists:     "UCM1011",
	KindSnapshotNotFound:   "UCM1012",
	KindValidationFailed:   "UCM1013",
	KindSerializationError: "UCM1014",
	KindNotImplemented:     "UCM1015",
}

// Error is the typed error value returned by every UCM operation. It
// carries enough structure for a host layer to serialize a diagnostic
// without reaching into engine internals (§6 "Diagnostics wire form").
type Error struct {
	Kind    Kind
	BlockID BlockId
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.BlockID != "" {
		return fmt.Sprintf("%s: %s (block %s)", e.Kind, e.Message, e.BlockID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable "UCMxxxx" wire code for this error's Kind.
func (e *Error) Code() string {
	if c, ok := wireCode[e.Kind]; ok {
		return c
	}
	return "UCM1000"
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, &ucm.Error{Kind: ucm.KindBlockNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, blockID BlockId, format string, args ...any) *Error {
	return &Error{Kind: kind, BlockID: blockID, Message: fmt.Sprintf(format, args...)}
}

func errBlockNotFound(id BlockId) *Error {
	return newError(KindBlockNotFound, id, "no block with id %q", id)
}

func errParentNotFound(id BlockId) *Error {
	return newError(KindParentNotFound, id, "no parent block with id %q", id)
}

func errInvalidBlockID(raw string) *Error {
	return newError(KindInvalidBlockID, "", "malformed block id %q", raw)
}

func errCycleDetected(id BlockId) *Error {
	return newError(KindCycleDetected, id, "operation would make %q its own ancestor", id)
}

func errPathNotFound(id BlockId, path string) *Error {
	return newError(KindPathNotFound, id, "path %q does not resolve", path)
}

func errTypeMismatch(id BlockId, format string, args ...any) *Error {
	return newError(KindTypeMismatch, id, format, args...)
}

func errNumericRange(id BlockId, format string, args ...any) *Error {
	return newError(KindNumericRangeError, id, format, args...)
}

func errInvalidOperation(format string, args ...any) *Error {
	return newError(KindInvalidOperation, "", format, args...)
}

func errInvalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, "", format, args...)
}

func errInvalidIndex(id BlockId, index, length int) *Error {
	return newError(KindInvalidIndex, id, "index %d out of range for %d children", index, length)
}

func errSnapshotExists(name string) *Error {
	return newError(KindSnapshotExists, "", "snapshot %q already exists", name)
}

func errSnapshotNotFound(name string) *Error {
	return newError(KindSnapshotNotFound, "", "snapshot %q not found", name)
}

func errValidationFailed(format string, args ...any) *Error {
	return newError(KindValidationFailed, "", format, args...)
}

func errNotImplemented(format string, args ...any) *Error {
	return newError(KindNotImplemented, "", format, args...)
}

package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for the caller: validation errors are
// caller-fixable, conflicts are retryable after a re-fetch, invariant
// violations and permission errors are not retried.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindInvariant  Kind = "invariant_violation"
	KindPermission Kind = "permission_denied"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Machine-readable codes surfaced alongside the kind.
const (
	CodeDuplicateActiveSignOff = "duplicate_active_sign_off"
	CodeNothingToRevoke        = "nothing_to_revoke"
	CodeInvalidTransition      = "invalid_transition"
	CodeStaleReleaseState      = "stale_release_state"
	CodeCriterionHasSignOffs   = "criterion_has_sign_offs"
	CodeDuplicateCriterionName = "duplicate_criterion_name"
	CodeReleaseFrozen          = "release_frozen"
	CodeReleaseNotDraft        = "release_not_draft"
	CodeDraftHasSignOffs       = "draft_has_sign_offs"
	CodeNotStakeholder         = "not_a_stakeholder"
	CodeMalformedLink          = "malformed_link"
	CodeMissingField           = "missing_required_field"
)

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Newf(kind Kind, code string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err, empty when untyped.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

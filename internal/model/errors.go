package model

import "errors"

// Kind classifies a business error so callers can map it without matching text.
type Kind uint8

const (
	// KindNotFound means the named activity or participant does not exist.
	KindNotFound Kind = iota + 1
	// KindConflict means the request breaks a registration rule.
	KindConflict
	// KindInvalid means the input was rejected before reaching the store.
	KindInvalid
)

// String returns the kind's log label.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a business-rule outcome. Infrastructure failures are never an *Error.
type Error struct {
	Kind Kind
	// Subject is the entity for KindNotFound and the field for KindInvalid.
	Subject string
	Reason  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return e.Subject + " not found"
	case KindInvalid:
		if e.Reason == "" {
			return "invalid " + e.Subject
		}
		return e.Reason
	default:
		return e.Reason
	}
}

// Business outcomes returned by the stores and the service.
var (
	ErrActivityNotFound    = &Error{Kind: KindNotFound, Subject: "activity"}
	ErrParticipantNotFound = &Error{Kind: KindNotFound, Subject: "participant"}

	ErrAlreadySignedUp = &Error{Kind: KindConflict, Reason: "already signed up"}
	ErrActivityFull    = &Error{Kind: KindConflict, Reason: "activity full"}
	ErrNotSignedUp     = &Error{Kind: KindConflict, Reason: "not signed up"}
)

// Invalid returns a KindInvalid error for field.
func Invalid(field, reason string) error {
	return &Error{Kind: KindInvalid, Subject: field, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err carries KindConflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsInvalid reports whether err carries KindInvalid.
func IsInvalid(err error) bool { return KindOf(err) == KindInvalid }

package verifier

import "errors"

// Kind classifies a verifier error for the transport layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindTooLarge   Kind = "too_large"
	KindAuth       Kind = "auth"
	KindNoFace     Kind = "no_face"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is a classified failure. Msg is safe to show to clients; Err holds
// the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	base *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel an error was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.base != nil && t == e.base
}

// with derives an error of the same kind carrying its own message and cause.
func (e *Error) with(msg string, cause error) *Error {
	if msg == "" {
		msg = e.Msg
	}
	return &Error{Kind: e.Kind, Msg: msg, Err: cause, base: e}
}

const noFaceMessage = "Failed to process face image. Ensure image contains exactly one clear face."

var (
	ErrInvalidEvent         = &Error{Kind: KindValidation, Msg: "Invalid event type"}
	ErrInvalidToken         = &Error{Kind: KindAuth, Msg: "Invalid token"}
	ErrExpiredToken         = &Error{Kind: KindAuth, Msg: "Token has expired"}
	ErrMissingIdentityClaim = &Error{Kind: KindAuth, Msg: "Token must contain user_id or sub field"}
	ErrInvalidImageEncoding = &Error{Kind: KindValidation, Msg: "Invalid base64 image data"}
	ErrImageTooLarge        = &Error{Kind: KindTooLarge, Msg: "Image is too large"}
	ErrNotAnImage           = &Error{Kind: KindValidation, Msg: "File must be an image"}
	ErrMissingIdentity      = &Error{Kind: KindValidation, Msg: "user_id is required"}
	ErrNoFaceDetected       = &Error{Kind: KindNoFace, Msg: noFaceMessage}
	ErrDecodeFailure        = &Error{Kind: KindNoFace, Msg: noFaceMessage}
	ErrMultipleFaces        = &Error{Kind: KindNoFace, Msg: noFaceMessage}
	ErrNotFound             = &Error{Kind: KindNotFound, Msg: "No face encodings found"}
	ErrInternal             = &Error{Kind: KindInternal, Msg: "Internal server error"}
)

// KindOf returns the kind of err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return ErrInternal.Msg
}

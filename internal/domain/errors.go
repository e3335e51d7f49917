package domain

import (
	"errors"
	"strings"
)

// Kind classifies a failure of a generation attempt. Every error that reaches the
// generation boundary carries exactly one kind.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindEncoding   Kind = "encoding"
	KindUpstream   Kind = "upstream"
	KindFormat     Kind = "format"
)

var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("auth error")
	ErrEncoding   = errors.New("encoding error")
	ErrUpstream   = errors.New("upstream error")
	ErrFormat     = errors.New("format error")
	ErrBusy       = errors.New("generation already in flight")
)

var kindSentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindAuth:       ErrAuth,
	KindEncoding:   ErrEncoding,
	KindUpstream:   ErrUpstream,
	KindFormat:     ErrFormat,
}

// Error is a classified error with a message that is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an Error of the given kind. Err may be nil.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrAuth) match any *Error of KindAuth.
func (e *Error) Is(target error) bool {
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		return sentinel == target
	}
	return false
}

// KindOf reports the kind of err. Unclassified errors are treated as upstream
// failures since they can only originate from the network boundary.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUpstream
}

// UserMessage converts err into the single message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		if msg := strings.TrimSpace(de.Message); msg != "" {
			return msg
		}
	}
	return err.Error()
}

package domain

import (
	"errors"
	"fmt"
)

// Kind classifica erros do motor de liquidação
type Kind string

const (
	KindValidation             Kind = "VALIDATION"
	KindInsufficientCredits    Kind = "INSUFFICIENT_CREDITS"
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindPredicateEvaluation    Kind = "PREDICATE_EVALUATION"
	KindConcurrencyConflict    Kind = "CONCURRENCY_CONFLICT"
)

// Sentinelas para uso com errors.Is
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInsufficientCredits    = &Error{Kind: KindInsufficientCredits}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrPredicateEvaluation    = &Error{Kind: KindPredicateEvaluation}
	ErrConcurrencyConflict    = &Error{Kind: KindConcurrencyConflict}
)

// Error carrega o tipo do erro, uma mensagem e opcionalmente a causa
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara apenas o Kind, permitindo errors.Is(err, domain.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error { return newErr(KindValidation, format, args...) }

func NotFoundf(format string, args ...any) error { return newErr(KindNotFound, format, args...) }

func InvalidTransitionf(format string, args ...any) error {
	return newErr(KindInvalidStateTransition, format, args...)
}

func InsufficientCreditsf(format string, args ...any) error {
	return newErr(KindInsufficientCredits, format, args...)
}

func PredicateEvaluationf(format string, args ...any) error {
	return newErr(KindPredicateEvaluation, format, args...)
}

// Conflict embrulha um erro de contenção vindo do storage
func Conflict(err error) error {
	return &Error{Kind: KindConcurrencyConflict, Msg: "storage contention", Err: err}
}

// KindOf devolve o Kind de um erro, ou "" quando não for do domínio
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

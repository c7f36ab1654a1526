package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind - категория ошибки, по которой транспортный слой выбирает код ответа.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error оборачивает исходную ошибку и помечает её категорией.
type Error struct {
	Kind Kind
	Code string // машинный код для клиента, пустой - код по Kind
	Err  error
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg != "":
		return e.Msg + ": " + e.Err.Error()
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Err: err, Msg: msg}
}

func WrapValidation(err error, msg string) error   { return wrap(KindValidation, err, msg) }
func WrapUnauthorized(err error, msg string) error { return wrap(KindUnauthorized, err, msg) }
func WrapForbidden(err error, msg string) error    { return wrap(KindForbidden, err, msg) }
func WrapNotFound(err error, msg string) error     { return wrap(KindNotFound, err, msg) }
func WrapConflict(err error, msg string) error     { return wrap(KindConflict, err, msg) }
func WrapInternal(err error, msg string) error     { return wrap(KindInternal, err, msg) }

// Validation, NotFound и т.д. создают ошибку без первопричины.
func Validation(msg string) error   { return wrap(KindValidation, nil, msg) }
func Unauthorized(msg string) error { return wrap(KindUnauthorized, nil, msg) }
func Forbidden(msg string) error    { return wrap(KindForbidden, nil, msg) }
func NotFound(msg string) error     { return wrap(KindNotFound, nil, msg) }
func Conflict(msg string) error     { return wrap(KindConflict, nil, msg) }
func RateLimited(msg string) error  { return wrap(KindRateLimited, nil, msg) }

// FieldError описывает невалидное поле запроса.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors - набор ошибок полей; транспорт отдаёт его в details.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Message
	}
	return strings.Join(parts, "; ")
}

// FieldsOf извлекает ошибки полей из цепочки.
func FieldsOf(err error) FieldErrors {
	var fe FieldErrors
	if stderrors.As(err, &fe) {
		return fe
	}
	return nil
}

// New создает ошибку с явным машинным кодом, например EMAIL_EXISTS.
func New(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// KindOf ищет первую помеченную ошибку в цепочке.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsInternal(err error) bool     { return KindOf(err) == KindInternal }

// CodeOf возвращает явный код ошибки или пустую строку.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message возвращает текст для клиента: без первопричины, только Msg.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

func Errorf(format string, a ...any) error {
	return &Error{Kind: KindUnknown, Err: fmt.Errorf(format, a...)}
}

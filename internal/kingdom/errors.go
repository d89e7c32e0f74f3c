package kingdom

import "errors"

// Code — категория ошибки разговора, по ней выбирается текст ответа пользователю.
type Code string

const (
	CodeTimeout               Code = "timeout"
	CodeInvalidCountry        Code = "invalid_country"
	CodeInvalidNumber         Code = "invalid_number"
	CodeInvalidRange          Code = "invalid_range"
	CodeInvalidDurationFormat Code = "invalid_duration_format"
	// CodeTooFarAhead — прогноз не помещается в time.Duration (около 290 лет).
	CodeTooFarAhead Code = "too_far_ahead"
)

// Error несёт код и исходную причину.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по коду: errors.Is(err, &Error{Code: CodeTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewError(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func WrapError(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf возвращает код ошибки или "" если это не *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

package account

import (
	goerrors "github.com/goliatone/go-errors"
)

// Response is the envelope every account operation is reported with
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Payload any        `json:"payload,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the serialized form of a rich error
type ErrorBody struct {
	Category string         `json:"category"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// OK builds a success envelope
func OK(message string, payload any) Response {
	return Response{
		Success: true,
		Message: message,
		Payload: payload,
	}
}

// Fail builds a failure envelope. Plain errors are wrapped as internal
// errors so the error member is always an object.
func Fail(message string, err error) Response {
	richErr := AsRichError(err)
	if message == "" {
		message = richErr.Message
	}
	return Response{
		Success: false,
		Message: message,
		Error:   NewErrorBody(richErr),
	}
}

// AsRichError returns err as a *goerrors.Error
func AsRichError(err error) *goerrors.Error {
	if err == nil {
		return goerrors.New("unknown error", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}
	return wrapInternal(err, "an unexpected error occurred")
}

// NewErrorBody projects a rich error into its JSON shape
func NewErrorBody(richErr *goerrors.Error) *ErrorBody {
	if richErr == nil {
		return nil
	}
	code := richErr.Code
	if code == 0 {
		code = goerrors.CodeInternal
	}
	return &ErrorBody{
		Category: richErr.Category.String(),
		Code:     code,
		TextCode: richErr.TextCode,
		Message:  richErr.Message,
		Metadata: richErr.Metadata,
	}
}

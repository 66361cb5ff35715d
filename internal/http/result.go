package httpapi

// Result response envelope shared with the front end:
// - code: 2000 on success
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultIncomplete the daily summary is not derivable yet (HTTP 200, type warning).
	ResultIncomplete = 60200
	// ResultVersionConflict the record changed since it was read; re-read and retry (HTTP 409).
	ResultVersionConflict = 60409
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func FailCode(code int, typ, message string) Result[any] {
	return Result[any]{Code: code, Type: typ, Message: message, Result: nil}
}

package serverutils

// BaseResponse is the envelope every endpoint returns.
type BaseResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func SuccessResponse[T any](message string, data T) BaseResponse[T] {
	return BaseResponse[T]{
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string, err error) BaseResponse[any] {
	resp := BaseResponse[any]{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

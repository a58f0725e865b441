package query

import (
	"errors"
	"fmt"
)

// ValidationError 输入校验错误
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(param, message string) *ValidationError {
	return &ValidationError{Param: param, Message: message}
}

// IsValidationError 判断错误链中是否包含校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

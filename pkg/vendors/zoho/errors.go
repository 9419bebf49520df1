package zoho

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized 刷新令牌后重试仍返回 401
	ErrUnauthorized = errors.New("zoho: 认证失败 (连续两次 401)")
	// ErrTokenRefresh 刷新访问令牌失败
	ErrTokenRefresh = errors.New("zoho: 刷新访问令牌失败")
	// ErrInvalidPayload 返回数据不符合预期结构
	ErrInvalidPayload = errors.New("zoho: 返回数据结构无效")
)

// APIError Zoho 返回的非成功响应
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Zoho API 错误 (HTTP %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound 资源不存在
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

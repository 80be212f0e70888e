package stash

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// 拉取失败的错误码（CLI 以 "code：err" 的形式输出到 stderr）。
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeAuthFailed       = "auth_failed"
	ErrCodeHTTPStatus       = "http_status"
	ErrCodeConnectionFailed = "connection_failed"
	ErrCodeGraphQL          = "graphql_error"
	ErrCodeFetchFailed      = "fetch_failed"
)

// ErrGraphQL 表示响应里带有 GraphQL errors[]。
var ErrGraphQL = errors.New("graphql error")

// ConnectionError 表示无法连上 Stash（网络错误或连通性检查失败）。调用方视为致命错误。
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to Stash at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError 表示按 ID 查询的记录不存在。
type NotFoundError struct {
	Kind domain.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// HTTPStatusError 表示 Stash 返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string // 截断后的响应体，便于排查
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, body)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConnection(err error) bool {
	var e *ConnectionError
	return errors.As(err, &e)
}

// ErrorCode 把 Stash 访问错误映射为错误码。
//
// 规则：
// - HTTP 401/403（包括登录失败）=> auth_failed；其他非 2xx => http_status
// - 其余按 NotFound、Connection、GraphQL 的顺序匹配，都不是则为 fetch_failed
func ErrorCode(err error) string {
	if code, ok := IsHTTPStatus(err); ok {
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return ErrCodeAuthFailed
		}
		return ErrCodeHTTPStatus
	}
	switch {
	case IsNotFound(err):
		return ErrCodeNotFound
	case IsConnection(err):
		return ErrCodeConnectionFailed
	case errors.Is(err, ErrGraphQL):
		return ErrCodeGraphQL
	default:
		return ErrCodeFetchFailed
	}
}

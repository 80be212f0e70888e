// Package httpx 固化访问 Stash 的 HTTP 策略：UA、鉴权头、代理与超时。
package httpx

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// UserAgent 是所有请求的默认 UA。
	UserAgent = "stash2nfo/1.0"

	// APIKeyHeader 是 Stash 校验 API key 的请求头。
	APIKeyHeader = "ApiKey"
)

// Transport 在每个请求上补齐 UA 与 ApiKey。
//
// 约束：
// - 调用方已设置的同名请求头保持不变
// - 每个请求只发送一次（GraphQL 请求都是带 body 的 POST）
type Transport struct {
	Base *http.Transport

	APIKey    string
	UserAgent string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = UserAgent
		}
		r.Header.Set("User-Agent", ua)
	}
	if t.APIKey != "" && r.Header.Get(APIKeyHeader) == "" {
		r.Header.Set(APIKeyHeader, t.APIKey)
	}
	return t.Base.RoundTrip(r)
}

// Options 描述 Stash HTTP client 的构造参数。
type Options struct {
	ProxyURL string
	APIKey   string
	Timeout  time.Duration
}

// NewClient 构造访问 Stash 的 HTTP client。
//
// 规则：
// - ProxyURL 非空：所有请求走代理
// - 带 cookie jar（用户名/密码登录依赖会话 cookie）
// - 总超时默认 30s
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy_url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:   base,
			APIKey: strings.TrimSpace(opts.APIKey),
		},
		Jar:     jar,
		Timeout: timeout,
	}, nil
}

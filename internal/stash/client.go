// Package stash 是 Stash GraphQL API 的最小客户端：按 ID/路径取记录、按关键字搜索。
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/httpx"
	"github.com/John-Robertt/stash2nfo/internal/source"
)

const maxResponseBytes = 32 << 20

// Client 是记录来源的抽象；转换流水线只依赖该接口。
type Client interface {
	FetchByID(ctx context.Context, kind domain.Kind, id string) (domain.RawRecord, error)
	// FetchByPath 按视频文件路径查找 scene；没有匹配时 ok=false 且 err=nil。
	FetchByPath(ctx context.Context, path string) (domain.RawRecord, bool, error)
	Search(ctx context.Context, query string, limit int) ([]domain.RawRecord, error)
}

var _ Client = (*GraphQLClient)(nil)

// Config 是连接 Stash 所需的参数（来自配置文件的 [stash] 段）。
type Config struct {
	Scheme   string
	Host     string
	Port     int
	APIKey   string
	Username string
	Password string
	ProxyURL string
}

// BaseURL 返回 <scheme>://<host>:<port>。
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + c.Host + ":" + strconv.Itoa(c.Port)
}

// GraphQLClient 通过 POST <base>/graphql 与 Stash 通信。
type GraphQLClient struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

// New 构造客户端并完成鉴权与连通性检查。
//
// 规则：
// - 配置了 APIKey：每个请求带 ApiKey 头
// - 否则配置了用户名+密码：先 POST /login 建立会话 cookie
// - 最后执行一次 version 查询；任何失败都包装为 *ConnectionError
func New(ctx context.Context, cfg Config, log *zap.Logger) (*GraphQLClient, error) {
	hc, err := httpx.NewClient(httpx.Options{ProxyURL: cfg.ProxyURL, APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	c := NewWithHTTPClient(cfg.BaseURL(), hc, log)

	if strings.TrimSpace(cfg.APIKey) == "" && cfg.Username != "" && cfg.Password != "" {
		if err := c.login(ctx, cfg.Username, cfg.Password); err != nil {
			return nil, &ConnectionError{URL: c.baseURL, Err: err}
		}
	}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithHTTPClient 不做鉴权与连通性检查（测试与复用 http.Client 时使用）。
func NewWithHTTPClient(baseURL string, hc *http.Client, log *zap.Logger) *GraphQLClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GraphQLClient{
		httpClient: hc,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// Ping 执行 version 查询验证连通性。
func (c *GraphQLClient) Ping(ctx context.Context) error {
	if _, err := c.Execute(ctx, pingQuery, nil); err != nil {
		if IsConnection(err) {
			return err
		}
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	return nil
}

func (c *GraphQLClient) login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	endpoint := c.baseURL + "/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return &HTTPStatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	c.log.Debug("stash login ok", zap.String("user", username))
	return nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Execute 发送一次 GraphQL 请求并返回 data（数字保留为 json.Number）。
func (c *GraphQLClient) Execute(ctx context.Context, query string, vars map[string]any) (domain.RawRecord, error) {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	endpoint := c.baseURL + "/graphql"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("stash graphql request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", endpoint),
		)
		return nil, &HTTPStatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(b), 256)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(b, &gr); err != nil {
		return nil, fmt.Errorf("parse graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, gr.Errors[0].Message)
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return domain.RawRecord{}, nil
	}
	data, err := source.DecodeJSON(gr.Data)
	if err != nil {
		return nil, fmt.Errorf("parse graphql data: %w", err)
	}
	return data, nil
}

// FetchByID 按类型与 ID 取完整记录。
func (c *GraphQLClient) FetchByID(ctx context.Context, kind domain.Kind, id string) (domain.RawRecord, error) {
	q, ok := byIDQueries[kind]
	if !ok {
		return nil, &domain.UnsupportedKindError{Kind: kind}
	}
	id = strings.TrimSpace(id)
	data, err := c.Execute(ctx, q.query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", kind, id, err)
	}
	rec, ok := data.Map(q.field)
	if !ok || len(rec) == 0 {
		return nil, &NotFoundError{Kind: kind, ID: id}
	}
	c.log.Debug("fetched record", zap.Stringer("kind", kind), zap.String("id", id))
	return adaptRecord(rec), nil
}

// FetchByPath 先按路径精确匹配 scene，再按 ID 取完整记录。
func (c *GraphQLClient) FetchByPath(ctx context.Context, path string) (domain.RawRecord, bool, error) {
	vars := map[string]any{
		"filter":       map[string]any{"per_page": 1},
		"scene_filter": map[string]any{"path": map[string]any{"value": path, "modifier": "EQUALS"}},
	}
	scenes, err := c.findScenes(ctx, vars)
	if err != nil {
		return nil, false, fmt.Errorf("find scene by path: %w", err)
	}
	if len(scenes) == 0 {
		return nil, false, nil
	}
	id := scenes[0].Text("id")
	if id == "" {
		return nil, false, nil
	}
	rec, err := c.FetchByID(ctx, domain.KindScene, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// Search 按关键字搜索 scene，返回摘要记录（id/title/date/studio/performers/files）。
func (c *GraphQLClient) Search(ctx context.Context, query string, limit int) ([]domain.RawRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	vars := map[string]any{
		"filter":       map[string]any{"per_page": limit, "q": query},
		"scene_filter": map[string]any{},
	}
	scenes, err := c.findScenes(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("search scenes: %w", err)
	}
	return scenes, nil
}

func (c *GraphQLClient) findScenes(ctx context.Context, vars map[string]any) ([]domain.RawRecord, error) {
	data, err := c.Execute(ctx, findScenesQuery, vars)
	if err != nil {
		return nil, err
	}
	found, _ := data.Map("findScenes")
	list, _ := found.List("scenes")
	out := make([]domain.RawRecord, 0, len(list))
	for _, s := range list {
		if m, ok := domain.AsMap(s); ok {
			out = append(out, adaptRecord(m))
		}
	}
	return out, nil
}

// adaptRecord 把 API 形态的差异收敛到记录文件的形态：
// rating100（0-100）=> rating（0-5），与文件导出的评分刻度一致。
func adaptRecord(rec domain.RawRecord) domain.RawRecord {
	if rec.Has("rating") || !rec.Has("rating100") {
		return rec
	}
	if f, ok := domain.Number(rec["rating100"]); ok && rec["rating100"] != nil {
		rec["rating"] = json.Number(strconv.FormatFloat(f/20, 'f', -1, 64))
	}
	return rec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsHTTPStatus 判断 err 是否为 *HTTPStatusError，并返回状态码。
func IsHTTPStatus(err error) (int, bool) {
	var e *HTTPStatusError
	if errors.As(err, &e) {
		return e.StatusCode, true
	}
	return 0, false
}

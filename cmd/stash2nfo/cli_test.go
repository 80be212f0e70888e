package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/stash"
)

type testIO struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestApp 构造一个非交互的 app；interactive=true 时把 stdin 视为终端。
func newTestApp(stdin string, interactive bool) testIO {
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(stdin), &stdout, &stderr)
	in := a.stdin
	a.isTerminal = func(v any) bool { return interactive && v == in }
	a.newStash = func(context.Context, config.Stash, *zap.Logger) (stash.Client, error) {
		return nil, errors.New("stash 不可用")
	}
	return testIO{app: a, stdout: &stdout, stderr: &stderr}
}

func writeFile(t *testing.T, path, s string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	return string(b)
}

func TestConvert_DefaultOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.json")
	writeFile(t, in, `{"title":"A","rating":"4","date":"2023-12-25","tags":["x","y"],"performers":["Bob"]}`)

	tio := newTestApp("", false)
	if code := execute(tio.app, []string{"convert", in, "--pretty"}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	out := filepath.Join(dir, "scene.nfo")
	if got, want := tio.stdout.String(), "Successfully converted '"+in+"' to '"+out+"'\n"; got != want {
		t.Fatalf("stdout 不一致：%q，期望 %q", got, want)
	}
	nfo := readFile(t, out)
	if !strings.Contains(nfo, "\n  <userrating>8.0</userrating>\n") {
		t.Fatalf("NFO 内容不一致：%s", nfo)
	}
}

func TestConvert_TypeAndEncodingFlags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "p.json")
	out := filepath.Join(dir, "custom.nfo")
	writeFile(t, in, `{"name":"José"}`)

	tio := newTestApp("", false)
	code := execute(tio.app, []string{"convert", in, out, "--type", "performer", "--encoding", "iso-8859-1"})
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	b := readFile(t, out)
	if !strings.HasPrefix(b, `<?xml version="1.0" encoding="iso-8859-1"`) || !strings.Contains(b, "<name>Jos\xe9</name>") {
		t.Fatalf("输出不一致：%q", b)
	}

	tio = newTestApp("", false)
	if code := execute(tio.app, []string{"convert", in, "--type", "movie"}); code != 1 {
		t.Fatalf("非法 --type 期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(tio.stderr.String(), "--type") {
		t.Fatalf("stderr 应说明 --type 错误：%s", tio.stderr)
	}
}

func TestConvert_UnsupportedKind(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "x.json")
	writeFile(t, in, `{"foo":"bar"}`)

	tio := newTestApp("", false)
	if code := execute(tio.app, []string{"convert", in}); code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(tio.stderr.String(), domain.ErrCodeUnsupportedKind) {
		t.Fatalf("stderr 应包含 error_code：%s", tio.stderr)
	}
}

func TestConvert_ExistingOutput(t *testing.T) {
	cases := []struct {
		name        string
		stdin       string
		interactive bool
		wantCode    int
		wantStdout  string
		wantContent string
	}{
		{"非交互直接失败", "", false, 1, "", "old"},
		{"交互拒绝", "n\n", true, 0, "Operation cancelled.", "old"},
		{"交互空回答视为拒绝", "\n", true, 0, "Operation cancelled.", "old"},
		{"交互确认", "yes\n", true, 0, "Successfully converted", "<title>New</title>"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "scene.json")
			out := filepath.Join(dir, "scene.nfo")
			writeFile(t, in, `{"title":"New"}`)
			writeFile(t, out, "old")

			tio := newTestApp(c.stdin, c.interactive)
			if code := execute(tio.app, []string{"convert", in}); code != c.wantCode {
				t.Fatalf("退出码 %d，期望 %d；stderr=%s", code, c.wantCode, tio.stderr)
			}
			if c.interactive && !strings.HasPrefix(tio.stdout.String(), "Output file '"+out+"' already exists. Overwrite? (y/N): ") {
				t.Fatalf("缺少确认提示：%q", tio.stdout)
			}
			if !strings.Contains(tio.stdout.String(), c.wantStdout) {
				t.Fatalf("stdout 不一致：%q", tio.stdout)
			}
			if got := readFile(t, out); !strings.Contains(got, c.wantContent) {
				t.Fatalf("输出文件内容不一致：%s", got)
			}
		})
	}
}

func TestConvert_OverwriteFlagSkipsPrompt(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.json")
	out := filepath.Join(dir, "scene.nfo")
	writeFile(t, in, `{"title":"New"}`)
	writeFile(t, out, "old")

	tio := newTestApp("", true)
	if code := execute(tio.app, []string{"convert", in, "--overwrite"}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	if strings.Contains(tio.stdout.String(), "Overwrite?") {
		t.Fatalf("--overwrite 时不应询问：%q", tio.stdout)
	}
}

func TestRun_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "scene.json"), `{"title":"A"}`)
	writeFile(t, filepath.Join(root, "b", "bad.json"), `{`)

	tio := newTestApp("", false)
	if code := execute(tio.app, []string{"run", root}); code != 1 {
		t.Fatalf("存在失败条目时期望退出码 1，实际 %d", code)
	}

	var rr domain.RunReport
	if err := json.Unmarshal(tio.stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, tio.stdout)
	}
	if rr.Summary != (domain.ReportSummary{Processed: 1, Failed: 1}) || rr.Path != root {
		t.Fatalf("报告不一致：%+v", rr)
	}
	if strings.Contains(tio.stdout.String(), "配置（生效）") || strings.Contains(tio.stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", tio.stdout)
	}
	if !strings.Contains(tio.stderr.String(), "完成：processed=1 skipped=0 failed=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", tio.stderr)
	}
}

func TestRun_ConfigErrorIsReported(t *testing.T) {
	tio := newTestApp("", false)
	missing := filepath.Join(t.TempDir(), "missing.toml")
	if code := execute(tio.app, []string{"--config", missing, "run", t.TempDir()}); code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(tio.stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v", err)
	}
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != config.ErrCodeNotFound {
		t.Fatalf("报告不一致：%+v", rr.Items)
	}
}

type stubStash struct {
	records map[string]domain.RawRecord
	byPath  map[string]string
	calls   int
	err     error
}

func (s *stubStash) FetchByID(ctx context.Context, kind domain.Kind, id string) (domain.RawRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.records[string(kind)+"/"+id]; ok {
		return r, nil
	}
	return nil, &stash.NotFoundError{Kind: kind, ID: id}
}

func (s *stubStash) FetchByPath(ctx context.Context, path string) (domain.RawRecord, bool, error) {
	id, ok := s.byPath[path]
	if !ok {
		return nil, false, nil
	}
	r, err := s.FetchByID(ctx, domain.KindScene, id)
	return r, err == nil, err
}

func (s *stubStash) Search(ctx context.Context, query string, limit int) ([]domain.RawRecord, error) {
	var out []domain.RawRecord
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Text("title")), strings.ToLower(query)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func withStash(tio testIO, s *stubStash) {
	tio.app.newStash = func(context.Context, config.Stash, *zap.Logger) (stash.Client, error) {
		return s, nil
	}
}

func TestFetch_ByIDUsesCache(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stash2nfo.toml")
	writeFile(t, cfgPath, "cache_dir = \""+filepath.ToSlash(filepath.Join(dir, "cache"))+"\"\n")

	s := &stubStash{records: map[string]domain.RawRecord{
		"scene/7": {"id": "7", "title": "Seven", "rating": json.Number("4.5"), "studio": map[string]any{"name": "S"}},
	}}
	out := filepath.Join(dir, "seven.nfo")

	tio := newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"--config", cfgPath, "fetch", "scene", "7", out}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	nfo := readFile(t, out)
	if !strings.Contains(nfo, "<userrating>9.0</userrating>") || !strings.Contains(nfo, "<studio>S</studio>") {
		t.Fatalf("NFO 内容不一致：%s", nfo)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache", "stash", "scene", "7.json")); err != nil {
		t.Fatalf("期望写出缓存：%v", err)
	}

	// 第二次：命中缓存，不访问 Stash。
	tio = newTestApp("", false)
	if code := execute(tio.app, []string{"--config", cfgPath, "fetch", "scene", "7", out, "--overwrite"}); code != 0 {
		t.Fatalf("命中缓存时不应访问 Stash：退出码 %d；stderr=%s", code, tio.stderr)
	}

	// --refresh：跳过缓存读取。
	tio = newTestApp("", false)
	if code := execute(tio.app, []string{"--config", cfgPath, "fetch", "scene", "7", out, "--overwrite", "--refresh"}); code != 1 {
		t.Fatalf("--refresh 应访问 Stash（此处不可用），实际退出码 %d", code)
	}
}

func TestFetch_NotFoundAndByPath(t *testing.T) {
	dir := t.TempDir()
	s := &stubStash{
		records: map[string]domain.RawRecord{"scene/3": {"id": "3", "title": "Three", "file": map[string]any{"duration": json.Number("180")}}},
		byPath:  map[string]string{"/media/three.mp4": "3"},
	}

	tio := newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"fetch", "performer", "404", filepath.Join(dir, "p.nfo")}); code != 1 {
		t.Fatalf("记录不存在时期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(tio.stderr.String(), "404") || !strings.Contains(tio.stderr.String(), stash.ErrCodeNotFound) {
		t.Fatalf("stderr 应包含错误码与缺失的 ID：%s", tio.stderr)
	}

	out := filepath.Join(dir, "three.nfo")
	tio = newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"fetch", "--path", "/media/three.mp4", out}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	if nfo := readFile(t, out); !strings.Contains(nfo, "<runtime>3</runtime>") {
		t.Fatalf("NFO 内容不一致：%s", nfo)
	}

	tio = newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"fetch", "--path", "/media/none.mp4", filepath.Join(dir, "none.nfo")}); code != 1 {
		t.Fatalf("路径无匹配时期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(tio.stderr.String(), stash.ErrCodeNotFound) {
		t.Fatalf("路径无匹配应输出 not_found：%s", tio.stderr)
	}

	tio = newTestApp("", false)
	withStash(tio, &stubStash{err: &stash.HTTPStatusError{URL: "http://stash/graphql", StatusCode: 401}})
	if code := execute(tio.app, []string{"fetch", "scene", "3", filepath.Join(dir, "denied.nfo")}); code != 1 {
		t.Fatalf("鉴权失败期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(tio.stderr.String(), stash.ErrCodeAuthFailed) {
		t.Fatalf("HTTP 401 应映射为 auth_failed：%s", tio.stderr)
	}

	tio = newTestApp("", false)
	if code := execute(tio.app, []string{"fetch", "movie", "1"}); code != 1 {
		t.Fatalf("非法类型期望退出码 1，实际 %d", code)
	}
}

func TestSearch_TableAndJSON(t *testing.T) {
	s := &stubStash{records: map[string]domain.RawRecord{
		"scene/1": {
			"id":         "1",
			"title":      "Morning Light",
			"studio":     map[string]any{"name": "Studio X"},
			"performers": []any{map[string]any{"name": "Ann"}, map[string]any{"name": "Bob"}},
			"files":      []any{map[string]any{"path": "/media/m.mp4"}},
		},
	}}

	tio := newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"search", "morning"}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, tio.stderr)
	}
	for _, want := range []string{"ID", "Title", "Morning Light", "Studio X", "Ann, Bob", "/media/m.mp4"} {
		if !strings.Contains(tio.stdout.String(), want) {
			t.Fatalf("表格缺少 %q：\n%s", want, tio.stdout)
		}
	}

	tio = newTestApp("", false)
	withStash(tio, s)
	if code := execute(tio.app, []string{"search", "nothing", "--json"}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d", code)
	}
	if strings.TrimSpace(tio.stdout.String()) != "[]" {
		t.Fatalf("无结果时 JSON 应为 []：%q", tio.stdout)
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := truncateWidth("abcdef", 5); got != "ab..." {
		t.Fatalf("截断不一致：%q", got)
	}
	if got := truncateWidth("日本語テキスト", 9); got != "日本語..." {
		t.Fatalf("CJK 截断不一致：%q", got)
	}
	if got := truncateWidth("abc", 0); got != "abc" {
		t.Fatalf("max=0 不应截断：%q", got)
	}
}

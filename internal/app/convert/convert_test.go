package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
	"github.com/John-Robertt/stash2nfo/internal/source"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgo="

func TestConvert_DetectsSceneAndRenders(t *testing.T) {
	raw, err := source.DecodeJSON([]byte(`{"title":"A","rating":"4","date":"2023-12-25","tags":["x","y"],"performers":["Bob"]}`))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	res, err := Convert(raw, Options{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Kind != domain.KindScene {
		t.Fatalf("期望 scene，实际 %s", res.Kind)
	}
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes" ?>` +
		`<movie><title>A</title><originaltitle>A</originaltitle><plot></plot><userrating>8.0</userrating>` +
		`<premiered>2023-12-25</premiered><year>2023</year>` +
		`<genre>x</genre><genre>y</genre><tag>x</tag><tag>y</tag>` +
		`<actor><name>Bob</name><order>0</order></actor></movie>`
	if res.XML != want {
		t.Fatalf("输出不一致：\n%s\n期望：\n%s", res.XML, want)
	}
}

func TestConvert_UndetectableIsUnsupported(t *testing.T) {
	_, err := Convert(domain.RawRecord{"foo": "bar"}, Options{}, nil)
	var ue *domain.UnsupportedKindError
	if !errors.As(err, &ue) {
		t.Fatalf("期望 UnsupportedKindError，实际 %v", err)
	}
	if got := ErrorCode(err); got != domain.ErrCodeUnsupportedKind {
		t.Fatalf("error_code 期望 %s，实际 %s", domain.ErrCodeUnsupportedKind, got)
	}
}

func TestConvert_IncompleteRecordOnlyWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	res, err := Convert(domain.RawRecord{"gender": "FEMALE"}, Options{Kind: domain.KindPerformer}, zap.New(core))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.Contains(res.XML, "<name></name>") {
		t.Fatalf("name 元素应始终存在：%s", res.XML)
	}
	entries := logs.FilterMessage("record looks incomplete").All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条 warn 日志，实际 %d", len(entries))
	}
	if entries[0].ContextMap()["kind"] != "performer" {
		t.Fatalf("日志字段不一致：%v", entries[0].ContextMap())
	}
}

func TestConvert_EncodingInDeclaration(t *testing.T) {
	res, err := Convert(domain.RawRecord{"title": "A"}, Options{Kind: domain.KindGallery, Encoding: "iso-8859-1"}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.HasPrefix(res.XML, `<?xml version="1.0" encoding="iso-8859-1" standalone="yes" ?>`) {
		t.Fatalf("声明不一致：%s", res.XML)
	}
}

func TestFile_SceneWithImages(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.json")
	write(t, in, `{
		"title":"A","file":{"duration":600},
		"cover":"`+pngDataURI+`",
		"fanart":"aGVsbG8gd29ybGQ=",
		"thumbnail":"!!!"
	}`)

	core, logs := observer.New(zapcore.WarnLevel)
	res, err := File(context.Background(), in, "", FileOptions{Images: true}, zap.New(core))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Kind != domain.KindScene || res.Output != filepath.Join(dir, "scene.nfo") {
		t.Fatalf("结果不一致：%+v", res)
	}
	if got := strings.Join(res.Images.Filenames(), ","); got != "poster.png,fanart.jpg" {
		t.Fatalf("图片文件名不一致：%s", got)
	}
	if len(res.Images.Skipped) != 1 || res.Images.Skipped[0].Key != "thumbnail" {
		t.Fatalf("期望跳过 thumbnail：%+v", res.Images.Skipped)
	}
	if logs.FilterMessage("skip embedded image").Len() != 1 {
		t.Fatalf("跳过的图片应记录 warn 日志")
	}

	b, err := os.ReadFile(res.Output)
	if err != nil {
		t.Fatalf("读取 NFO 失败：%v", err)
	}
	if res.Bytes != len(b) || !strings.Contains(string(b), "<runtime>10</runtime>") {
		t.Fatalf("NFO 内容不一致（bytes=%d）：%s", res.Bytes, b)
	}
	for _, name := range []string{"poster.png", "fanart.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("期望写出 %s：%v", name, err)
		}
	}
}

func TestFile_ImagesDisabled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.json")
	write(t, in, `{"title":"A","cover":"`+pngDataURI+`"}`)

	res, err := File(context.Background(), in, filepath.Join(dir, "out", "x.nfo"), FileOptions{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(res.Images.Artifacts) != 0 {
		t.Fatalf("images=false 时不应抽取图片：%+v", res.Images)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "poster.png")); !os.IsNotExist(err) {
		t.Fatalf("不应写出 poster.png：%v", err)
	}
}

func TestFile_PerformerYAML(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jane.yaml")
	write(t, in, "name: Jane\ngender: FEMALE\naliases:\n  - Jane\n  - Janey\n")

	res, err := File(context.Background(), in, "", FileOptions{Options: Options{Pretty: true}}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Kind != domain.KindPerformer {
		t.Fatalf("期望 performer，实际 %s", res.Kind)
	}
	b, err := os.ReadFile(filepath.Join(dir, "jane.nfo"))
	if err != nil {
		t.Fatalf("读取 NFO 失败：%v", err)
	}
	if !strings.Contains(string(b), "Aliases: Jane, Janey</biography>") {
		t.Fatalf("biography 应以别名行结尾：%s", b)
	}
}

func TestFile_YAMLUnquotedDates(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.yaml")
	write(t, scene, "title: A\ndate: 2023-12-25\n")
	if _, err := File(context.Background(), scene, "", FileOptions{Options: Options{Kind: domain.KindScene}}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "scene.nfo"))
	if err != nil {
		t.Fatalf("读取 NFO 失败：%v", err)
	}
	if !strings.Contains(string(b), "<premiered>2023-12-25</premiered><year>2023</year>") {
		t.Fatalf("未加引号的 date 应得到 premiered 与 year：%s", b)
	}

	performer := filepath.Join(dir, "jane.yml")
	write(t, performer, "name: Jane\nbirthdate: 1990-05-01\n")
	if _, err := File(context.Background(), performer, "", FileOptions{Options: Options{Kind: domain.KindPerformer}}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err = os.ReadFile(filepath.Join(dir, "jane.nfo"))
	if err != nil {
		t.Fatalf("读取 NFO 失败：%v", err)
	}
	if !strings.Contains(string(b), "<birthdate>1990-05-01</birthdate>") {
		t.Fatalf("birthdate 应保持原样：%s", b)
	}
}

func TestFile_ExistingOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.json")
	out := filepath.Join(dir, "scene.nfo")
	write(t, in, `{"title":"New"}`)
	write(t, out, "old")

	_, err := File(context.Background(), in, "", FileOptions{}, nil)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际 %v", err)
	}
	if got := ErrorCode(err); got != domain.ErrCodeTargetExists {
		t.Fatalf("error_code 期望 %s，实际 %s", domain.ErrCodeTargetExists, got)
	}
	if b, _ := os.ReadFile(out); string(b) != "old" {
		t.Fatalf("不应覆盖已有文件：%s", b)
	}

	if _, err := File(context.Background(), in, "", FileOptions{Overwrite: true}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if b, _ := os.ReadFile(out); !strings.Contains(string(b), "<title>New</title>") {
		t.Fatalf("overwrite=true 应覆盖：%s", b)
	}
}

func TestWriteOutput_Encoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.nfo")

	n, err := WriteOutput(path, "<t>é</t>", "iso-8859-1", false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(path)
	if n != 8 || string(b) != "<t>\xe9</t>" {
		t.Fatalf("编码结果不一致：n=%d %q", n, b)
	}

	_, err = WriteOutput(filepath.Join(dir, "b.nfo"), "<t>日本</t>", "iso-8859-1", false)
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("期望 EncodeError，实际 %v", err)
	}
	if ErrorCode(err) != domain.ErrCodeEncodeFailed {
		t.Fatalf("error_code 不一致：%s", ErrorCode(err))
	}
	if _, err := os.Stat(filepath.Join(dir, "b.nfo")); !os.IsNotExist(err) {
		t.Fatalf("编码失败时不应留下文件：%v", err)
	}
}

func TestErrorCode(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	write(t, bad, `[1,2]`)
	_, parseErr := source.LoadFile(bad)
	_, readErr := source.LoadFile(filepath.Join(dir, "missing.json"))

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{parseErr, domain.ErrCodeParseFailed},
		{readErr, domain.ErrCodeIOFailed},
		{&fsx.PathTypeConflictError{Path: "x", Want: "file", Got: "dir"}, domain.ErrCodeTargetConflict},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err); got != c.want {
			t.Fatalf("ErrorCode(%v)=%q，期望 %q", c.err, got, c.want)
		}
	}
}

func write(t *testing.T, path, s string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

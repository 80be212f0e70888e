package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

func TestStore_ReadWriteRecord(t *testing.T) {
	root := t.TempDir()

	s := New(root)
	if err := s.WriteRecord(domain.KindScene, "12", []byte(`{"id":"12"}`)); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadRecord(domain.KindScene, "12")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != `{"id":"12"}` {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.RecordPath(domain.KindScene, "12")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if path != filepath.Join(root, "stash", "scene", "12.json") {
		t.Fatalf("路径不一致：%q", path)
	}

	if _, ok, _ := s.ReadRecord(domain.KindPerformer, "12"); ok {
		t.Fatalf("不同类型不应共享缓存")
	}
}

func TestStore_DisabledIsNoop(t *testing.T) {
	s := New("  ")
	if s.Enabled() {
		t.Fatalf("空 root 应禁用缓存")
	}
	if err := s.WriteRecord(domain.KindScene, "1", []byte("x")); err != nil {
		t.Fatalf("禁用时写入应为 no-op：%v", err)
	}
	if _, ok, err := s.ReadRecord(domain.KindScene, "1"); ok || err != nil {
		t.Fatalf("禁用时读取应未命中：ok=%v err=%v", ok, err)
	}
}

func TestStore_RejectsBadKeys(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.RecordPath(domain.KindScene, "../etc"); err == nil {
		t.Fatalf("路径穿越的 id 应被拒绝")
	}
	if _, err := s.RecordPath(domain.KindScene, ""); err == nil {
		t.Fatalf("空 id 应被拒绝")
	}
	var ue *domain.UnsupportedKindError
	if _, err := s.RecordPath(domain.KindUnknown, "1"); !errors.As(err, &ue) {
		t.Fatalf("期望 UnsupportedKindError，实际 %v", err)
	}
}

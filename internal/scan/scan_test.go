package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanRecords_SkipsHiddenAndOtherExts(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, ".cache", "stash", "scene", "1.json"))
	touch(t, filepath.Join(root, "in", ".scene.nfo.tmp-123"))
	touch(t, filepath.Join(root, "in", ".hidden.json"))
	touch(t, filepath.Join(root, "in", "scene.json"))
	touch(t, filepath.Join(root, "in", "scene.nfo"))
	touch(t, filepath.Join(root, "in", "video.mp4"))

	got, err := ScanRecords(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个记录文件，实际 %d：%+v", len(got), got)
	}
	wantRel := filepath.Join("in", "scene.json")
	if got[0].RelPath != wantRel || got[0].Base != "scene" {
		t.Fatalf("期望 rel=%q，实际=%+v", wantRel, got[0])
	}
}

func TestScanRecords_ExcludeDirsFromConfig(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "temp", "a.json"))
	touch(t, filepath.Join(root, "ok", "b.yml"))

	got, err := ScanRecords(root, []string{"temp", " "})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个记录文件，实际 %d", len(got))
	}
	wantRel := filepath.Join("ok", "b.yml")
	if got[0].RelPath != wantRel {
		t.Fatalf("期望 rel=%q，实际=%q", wantRel, got[0].RelPath)
	}
}

func TestScanRecords_ExtCaseInsensitiveAndSorted(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.YAML"))
	touch(t, filepath.Join(root, "a.Json"))

	got, err := ScanRecords(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个记录文件，实际 %d", len(got))
	}
	if got[0].RelPath != "a.Json" || got[0].Ext != ".json" || got[1].Ext != ".yaml" {
		t.Fatalf("排序或扩展名不一致：%+v", got)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

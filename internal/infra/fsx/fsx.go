// Package fsx 收敛文件写入策略：同目录临时文件 + rename 的原子写，以及输出目录锁。
package fsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// LockFileName 是输出目录锁文件名（前缀带 '.'，避免污染媒体库视图）。
const LockFileName = ".stash2nfo.lock"

const lockRetryDelay = 20 * time.Millisecond

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层把它映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CheckTarget 检查 path 能否作为输出文件：
// - 不存在：exists=false
// - 普通文件：exists=true
// - 目录或其它类型：*PathTypeConflictError
func CheckTarget(path string) (exists bool, err error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() {
		return true, &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return true, &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return true, nil
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name；目标已存在时返回 os.ErrExist。
//
// 约束：
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 对临时文件做 Sync；目录 Sync 采用 best-effort
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	exists, err := CheckTarget(filepath.Join(filepath.Clean(dir), name))
	if err != nil {
		return err
	}
	if exists {
		return os.ErrExist
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

// WriteFileAtomicReplace 写入并覆盖同名文件（Windows 上为 best-effort）。
// 目标是目录时返回 *PathTypeConflictError。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if _, err := CheckTarget(filepath.Join(filepath.Clean(dir), name)); err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// DirLock 是 LockDir 返回的独占锁；Unlock 可重复调用。
type DirLock struct {
	fl *flock.Flock
}

// LockDir 对 dir 取独占锁（<dir>/.stash2nfo.lock），阻塞直到获得锁或 ctx 结束。
//
// 同一输出目录下的图片抽取与 NFO 写入必须在锁内完成：文件名由输入决定，
// 两个记录写到同一目录时会竞争同名文件。
func LockDir(ctx context.Context, dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(dir, LockFileName))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", dir, ctx.Err())
	}
	return &DirLock{fl: fl}, nil
}

func (l *DirLock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Package cache 把从 Stash 拉取的原始记录缓存为 JSON 文件。
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
)

// Store 提供 <root>/stash/<kind>/<id>.json 的文件缓存读写。
//
// Root 为空表示禁用缓存：读总是未命中，写是 no-op。
type Store struct {
	Root string
}

func New(root string) Store {
	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}
	return Store{Root: root}
}

// Enabled 报告是否配置了缓存目录。
func (s Store) Enabled() bool { return s.Root != "" }

// RecordPath 返回记录缓存的绝对路径。
func (s Store) RecordPath(kind domain.Kind, id string) (string, error) {
	dir, name, err := s.locate(kind, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadRecord 读取缓存；未命中返回 ok=false 且 err=nil。
func (s Store) ReadRecord(kind domain.Kind, id string) ([]byte, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	path, err := s.RecordPath(kind, id)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// WriteRecord 原子写入（覆盖）缓存文件。
func (s Store) WriteRecord(kind domain.Kind, id string, data []byte) error {
	if !s.Enabled() {
		return nil
	}
	dir, name, err := s.locate(kind, id)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, name, data)
}

var idRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (s Store) locate(kind domain.Kind, id string) (dir, name string, err error) {
	if !kind.Valid() {
		return "", "", &domain.UnsupportedKindError{Kind: kind}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("id 不能为空")
	}
	// 最小约束：避免路径穿越；Stash 的 ID 本身是数字串。
	if !idRE.MatchString(id) {
		return "", "", fmt.Errorf("非法 id：%q", id)
	}
	return filepath.Join(s.Root, "stash", string(kind)), id + ".json", nil
}

// Package scan 扫描目录树中的记录文件（.json/.yaml/.yml）。
package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// ScanRecords 扫描 root 下的记录文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：以 '.' 开头的目录与文件（锁文件、原子写的临时文件等）
// - excludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanRecords(root string, excludeDirs []string) ([]domain.RecordFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.RecordFile, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		hidden := path != root && strings.HasPrefix(d.Name(), ".")
		if hidden || isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !IsRecordExt(ext) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.RecordFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// IsRecordExt 报告 ext（小写，带 '.'）是否为记录文件扩展名。
func IsRecordExt(ext string) bool {
	switch ext {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}

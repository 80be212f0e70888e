// Package planner 为扫描到的记录文件生成确定性的输出计划（不做任何写入）。
package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
)

// NFOExt 是输出文件扩展名。
const NFOExt = ".nfo"

// Action 是单个记录文件的计划动作。
type Action string

const (
	ActionConvert Action = "convert"
	ActionSkip    Action = "skip"
	ActionFail    Action = "fail"
)

// ItemPlan 是单个记录文件的执行计划。
type ItemPlan struct {
	Input domain.RecordFile

	OutputAbs string
	OutputRel string

	Action    Action
	ErrorCode string
	ErrorMsg  string
}

// OutputPath 把输入路径的扩展名替换为 .nfo（没有扩展名时直接追加）。
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + NFOExt
}

// PlanAll 为 files 生成计划；files 须已按 RelPath 排序（scan.ScanRecords 保证）。
//
// 规则：
// - NFO 写在输入旁边：<dir>/<base>.nfo
// - 目标已存在且 overwrite=false：skip（error_code=target_exists）
// - 目标路径是目录等非普通文件：fail（error_code=target_conflict）
// - 同目录下多个记录映射到同一个 NFO（a.json 与 a.yaml）：排序靠前者胜出，其余 fail（target_conflict）
func PlanAll(files []domain.RecordFile, overwrite bool) ([]ItemPlan, error) {
	claimed := make(map[string]string, len(files))
	plans := make([]ItemPlan, 0, len(files))

	for _, f := range files {
		p := ItemPlan{
			Input:     f,
			OutputAbs: OutputPath(f.AbsPath),
			OutputRel: OutputPath(f.RelPath),
			Action:    ActionConvert,
		}

		if prev, ok := claimed[p.OutputAbs]; ok {
			p.Action = ActionFail
			p.ErrorCode = domain.ErrCodeTargetConflict
			p.ErrorMsg = fmt.Sprintf("输出 %q 已被 %q 占用", p.OutputRel, prev)
			plans = append(plans, p)
			continue
		}
		claimed[p.OutputAbs] = f.RelPath

		exists, err := fsx.CheckTarget(p.OutputAbs)
		switch {
		case fsx.IsPathTypeConflict(err):
			p.Action = ActionFail
			p.ErrorCode = domain.ErrCodeTargetConflict
			p.ErrorMsg = err.Error()
		case err != nil:
			return nil, err
		case exists && !overwrite:
			p.Action = ActionSkip
			p.ErrorCode = domain.ErrCodeTargetExists
			p.ErrorMsg = "NFO 已存在（使用 --overwrite 覆盖）"
		}
		plans = append(plans, p)
	}
	return plans, nil
}

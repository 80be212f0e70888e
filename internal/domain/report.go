package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeParseFailed     = "parse_failed"
	ErrCodeUnsupportedKind = "unsupported_kind"
	ErrCodeTargetExists    = "target_exists"
	ErrCodeTargetConflict  = "target_conflict"
	ErrCodeIOFailed        = "io_failed"
	ErrCodeEncodeFailed    = "encode_failed"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
)

// RunReport 是批量转换对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Overwrite bool   `json:"overwrite"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ItemResult 是单个记录文件的转换结果。Input/Output 均为相对扫描根目录的路径。
type ItemResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Kind   string `json:"kind"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Images       []string `json:"images"`
	ImageSkipped int      `json:"image_skipped"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 input 字典序；input=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Input
		b := r.Items[j].Input
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性：nil 切片统一输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	for i := range a.Items {
		if a.Items[i].Images == nil {
			a.Items[i].Images = []string{}
		}
	}
	return json.Marshal(a)
}

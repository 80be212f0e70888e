package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

var searchColumns = []column{
	{header: "ID"},
	{header: "Title", maxWidth: 40},
	{header: "Studio", maxWidth: 20},
	{header: "Performers", maxWidth: 30},
	{header: "Path", maxWidth: 50},
}

func newSearchCommand(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "在 Stash 中按关键字搜索 scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, log, err := a.load(config.CLIArgs{ConfigPath: a.configPath, Verbose: a.verbose})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			client, err := a.newStash(cmd.Context(), eff.Stash, log)
			if err != nil {
				return err
			}
			scenes, err := client.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			log.Debug("search finished", zap.String("query", args[0]), zap.Int("results", len(scenes)))

			if asJSON {
				if scenes == nil {
					scenes = []domain.RawRecord{}
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(scenes)
			}
			if len(scenes) == 0 {
				fmt.Fprintln(a.stdout, "没有匹配的 scene")
				return nil
			}
			fmt.Fprintln(a.stdout, renderTable(searchColumns, searchRows(scenes)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "最多返回的条数")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func searchRows(scenes []domain.RawRecord) [][]string {
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		var performers []string
		if list, ok := s.List("performers"); ok {
			for _, p := range list {
				if n := nameOf(p); n != "" {
					performers = append(performers, n)
				}
			}
		}
		path := ""
		if files, ok := s.List("files"); ok && len(files) > 0 {
			path = nameOfKey(files[0], "path")
		}
		rows = append(rows, []string{
			s.Text("id"),
			s.Text("title"),
			nameOf(s["studio"]),
			strings.Join(performers, ", "),
			path,
		})
	}
	return rows
}

// nameOf 取 {name: ...} 对象的 name，或直接取标量文本。
func nameOf(v any) string {
	return nameOfKey(v, "name")
}

func nameOfKey(v any, key string) string {
	if m, ok := domain.AsMap(v); ok {
		return m.Text(key)
	}
	return domain.Text(v)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/app/convert"
	"github.com/John-Robertt/stash2nfo/internal/app/planner"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

func newConvertCommand(a *app) *cobra.Command {
	var (
		typ  string
		outF outputFlags
	)

	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "转换单个记录文件（输出默认与输入同名，扩展名为 .nfo）",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			fi, err := os.Stat(input)
			if err != nil {
				return fmt.Errorf("读取输入文件失败：%w", err)
			}
			if !fi.Mode().IsRegular() {
				return fmt.Errorf("输入不是普通文件：%q", input)
			}

			kind, ok := domain.ParseKind(typ)
			if !ok {
				return fmt.Errorf("--type 只能是 auto/scene/performer/gallery，实际是 %q", typ)
			}

			eff, log, err := a.load(outF.cliArgs(a, cmd))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			output := planner.OutputPath(input)
			if len(args) == 2 {
				output = args[1]
			}

			proceed, replace, err := a.confirmOverwrite(output, eff.Overwrite)
			if err != nil || !proceed {
				return err
			}

			log.Debug("converting",
				zap.String("input", input),
				zap.String("output", output),
				zap.Stringer("type", kind),
			)
			res, err := convert.File(cmd.Context(), input, output, convert.FileOptions{
				Options: convert.Options{
					Kind:     kind,
					Encoding: eff.Encoding,
					Pretty:   eff.Pretty,
				},
				Overwrite: replace,
				Images:    eff.Images,
			}, log)
			if err != nil {
				return fmt.Errorf("%s：%w", convert.ErrorCode(err), err)
			}

			log.Debug("conversion finished",
				zap.Stringer("kind", res.Kind),
				zap.Int("bytes", res.Bytes),
				zap.Strings("images", res.Images.Filenames()),
			)
			fmt.Fprintf(a.stdout, "Successfully converted '%s' to '%s'\n", input, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "auto", "记录类型：auto/scene/performer/gallery")
	outF.register(cmd)
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/app/convert"
	"github.com/John-Robertt/stash2nfo/internal/app/planner"
	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/cache"
	"github.com/John-Robertt/stash2nfo/internal/source"
	"github.com/John-Robertt/stash2nfo/internal/stash"
)

var errNoSceneForPath = errors.New("没有与该路径匹配的 scene")

func newFetchCommand(a *app) *cobra.Command {
	var (
		outF      outputFlags
		videoPath string
		refresh   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch (<scene|performer|gallery> <id> | --path <video>) [output]",
		Short: "从 Stash 拉取一条记录并转换为 NFO",
		Args: func(cmd *cobra.Command, args []string) error {
			if videoPath != "" {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				kind   = domain.KindScene
				id     string
				output string
			)
			if videoPath == "" {
				k, ok := domain.ParseKind(args[0])
				if !ok || !k.Valid() {
					return fmt.Errorf("类型只能是 scene/performer/gallery，实际是 %q", args[0])
				}
				kind, id = k, args[1]
				output = fmt.Sprintf("%s-%s.nfo", kind, id)
				if len(args) == 3 {
					output = args[2]
				}
			} else {
				output = planner.OutputPath(videoPath)
				if len(args) == 1 {
					output = args[0]
				}
			}

			eff, log, err := a.load(outF.cliArgs(a, cmd))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			proceed, replace, err := a.confirmOverwrite(output, eff.Overwrite)
			if err != nil || !proceed {
				return err
			}

			store := cache.New(eff.CacheDir)
			f := fetcher{app: a, eff: eff, store: store, refresh: refresh, log: log}
			var raw domain.RawRecord
			if videoPath != "" {
				raw, err = f.byPath(cmd.Context(), videoPath)
			} else {
				raw, err = f.byID(cmd.Context(), kind, id)
			}
			if err != nil {
				return fmt.Errorf("%s：%w", fetchErrorCode(err), err)
			}

			res, err := convert.Record(cmd.Context(), raw, output, convert.FileOptions{
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
			log.Debug("conversion finished", zap.Stringer("kind", res.Kind), zap.Int("bytes", res.Bytes))
			fmt.Fprintf(a.stdout, "Successfully converted %s '%s' to '%s'\n", kind, recordLabel(raw, id, videoPath), output)
			return nil
		},
	}

	outF.register(cmd)
	cmd.Flags().StringVar(&videoPath, "path", "", "按视频文件路径查找 scene")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "忽略缓存，重新从 Stash 拉取")
	return cmd
}

// fetcher 先查缓存，未命中再访问 Stash，并把结果写回缓存。
type fetcher struct {
	app     *app
	eff     config.Effective
	store   cache.Store
	refresh bool
	log     *zap.Logger
}

func (f fetcher) byID(ctx context.Context, kind domain.Kind, id string) (domain.RawRecord, error) {
	if !f.refresh {
		if raw, ok := f.readCache(kind, id); ok {
			return raw, nil
		}
	}
	client, err := f.app.newStash(ctx, f.eff.Stash, f.log)
	if err != nil {
		return nil, err
	}
	raw, err := client.FetchByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	f.writeCache(kind, id, raw)
	return raw, nil
}

func (f fetcher) byPath(ctx context.Context, path string) (domain.RawRecord, error) {
	client, err := f.app.newStash(ctx, f.eff.Stash, f.log)
	if err != nil {
		return nil, err
	}
	raw, ok, err := client.FetchByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w：%q", errNoSceneForPath, path)
	}
	if id := raw.Text("id"); id != "" {
		f.writeCache(domain.KindScene, id, raw)
	}
	return raw, nil
}

func (f fetcher) readCache(kind domain.Kind, id string) (domain.RawRecord, bool) {
	b, ok, err := f.store.ReadRecord(kind, id)
	if err != nil || !ok {
		if err != nil {
			f.log.Warn("read cache failed", zap.Stringer("kind", kind), zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	raw, err := source.DecodeJSON(b)
	if err != nil {
		// 坏缓存：忽略，走网络（成功后会被覆盖）。
		f.log.Warn("ignore broken cache entry", zap.Stringer("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, false
	}
	f.log.Debug("cache hit", zap.Stringer("kind", kind), zap.String("id", id))
	return raw, true
}

func (f fetcher) writeCache(kind domain.Kind, id string, raw domain.RawRecord) {
	if !f.store.Enabled() {
		return
	}
	b, err := json.Marshal(raw)
	if err == nil {
		err = f.store.WriteRecord(kind, id, b)
	}
	if err != nil {
		f.log.Warn("write cache failed", zap.Stringer("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

func fetchErrorCode(err error) string {
	if errors.Is(err, errNoSceneForPath) {
		return stash.ErrCodeNotFound
	}
	return stash.ErrorCode(err)
}

func recordLabel(raw domain.RawRecord, id, path string) string {
	if id != "" {
		return id
	}
	if v := raw.Text("id"); v != "" {
		return v
	}
	return path
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(execute(newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:]))
}

// execute 运行一次 CLI 并返回进程退出码（测试直接调用，不经过 os.Exit）。
func execute(a *app, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(a.stderr, "错误：%v\n", err)
		}
		return 1
	}
	return 0
}

// exitError 表示结果已经输出完毕，只需以 code 退出（不再打印错误）。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

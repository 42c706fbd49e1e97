package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/app/run"
	"github.com/John-Robertt/autorename/internal/config"
	"github.com/John-Robertt/autorename/internal/domain"
	"github.com/John-Robertt/autorename/internal/infra/fsx"
	"github.com/John-Robertt/autorename/internal/infra/logx"
	"github.com/John-Robertt/autorename/internal/scan"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// reportFileName 位于 <target>/.autorename/ 下。
const reportFileName = "report.json"

// defaultLogFile 是只给 -l、不给路径时的日志文件（相对 cwd）。
const defaultLogFile = "autorename.log"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getwd:  os.Getwd,
		lookup: os.LookupEnv,
	})
	stop()
	os.Exit(code)
}

// env 收拢进程级依赖，测试时可整体替换。
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getwd  func() (string, error)
	lookup config.LookupEnv
}

type flags struct {
	interactive  bool
	appendName   bool
	logFile      string
	creationTime bool
	xmp          bool
	recursive    bool
	verbose      bool
}

// execute 解析命令行并运行，返回进程退出码。
// cobra 自身返回的错误（未知子命令、未知参数、参数个数不对）一律是用法错误。
func execute(ctx context.Context, args []string, e env) int {
	code := exitOK
	root := newRootCmd(ctx, e, &code)
	root.SetArgs(args)
	root.SetIn(e.stdin)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(e.stderr, "参数错误：%v\n\n", err)
		fmt.Fprint(e.stderr, root.UsageString())
		return exitUsage
	}
	return code
}

func newRootCmd(ctx context.Context, e env, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "autorename",
		Short: "按拍摄时间重命名照片与视频",
		Long: `autorename 从 EXIF、视频元数据、文件名（可选：XMP 旁车文件、文件创建时间）中
取最早的可信时间，把媒体文件改名为 YYYY-MM-DD[_HH-MM-SS].ext。
同名冲突时，内容完全相同的文件加 DUPLICATE_ 前缀，其余按 _001、_002 编号；
已存在的文件永远不会被覆盖。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	for _, a := range []struct {
		action string
		short  string
	}{
		{domain.ActionRename, "原地（或移动到 target）改名"},
		{domain.ActionCopy, "复制到 target 并改名，源文件不动"},
		{domain.ActionDryRun, "只输出计划，不改动任何文件"},
	} {
		root.AddCommand(newActionCmd(ctx, e, code, a.action, a.short))
	}
	return root
}

func newActionCmd(ctx context.Context, e env, code *int, action, short string) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   action + " [source] [target]",
		Short: short,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				Interactive:     f.interactive,
				InteractiveSet:  cmd.Flags().Changed("interactive"),
				Append:          f.appendName,
				AppendSet:       cmd.Flags().Changed("append"),
				FileCreation:    f.creationTime,
				FileCreationSet: cmd.Flags().Changed("creation-time"),
				XMPSidecar:      f.xmp,
				XMPSidecarSet:   cmd.Flags().Changed("xmp"),
				Recursive:       f.recursive,
				RecursiveSet:    cmd.Flags().Changed("recursive"),
				LogFile:         f.logFile,
				LogFileSet:      cmd.Flags().Changed("logfile"),
			}
			if len(args) > 0 {
				cli.Source = args[0]
			}
			if len(args) > 1 {
				cli.Target = args[1]
			}
			*code = runAction(ctx, e, action, cli, f.verbose)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "执行前列出计划并确认")
	fl.BoolVarP(&f.appendName, "append", "a", false, "在时间后追加原文件名：<时间>-<原名>.ext")
	fl.StringVarP(&f.logFile, "logfile", "l", "", "额外写一份 debug 级别的日志文件（只给 -l 时为 "+defaultLogFile+"）")
	fl.Lookup("logfile").NoOptDefVal = defaultLogFile
	fl.BoolVar(&f.creationTime, "creation-time", false, "把文件系统创建时间也作为候选")
	fl.BoolVar(&f.xmp, "xmp", false, "读取同名 .xmp 旁车文件")
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "递归扫描子目录")
	fl.BoolVar(&f.verbose, "verbose", false, "控制台输出 debug 日志")
	return cmd
}

func runAction(ctx context.Context, e env, action string, cli config.CLIArgs, verbose bool) int {
	cwd, err := e.getwd()
	if err != nil {
		fmt.Fprintf(e.stderr, "读取当前目录失败：%v\n", err)
		return exitFail
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli, e.lookup)
	if err != nil {
		emitReport(e.stdout, e.stderr, reportForConfigError(cwdAbs, action, err))
		return exitFail
	}

	logger, closeLog, err := logx.New(logx.Options{
		Console: e.stderr,
		Verbose: verbose,
		Color:   isTTY(e.stderr),
		File:    eff.LogFile,
	})
	if err != nil {
		emitReport(e.stdout, e.stderr, reportForConfigError(cwdAbs, action, &config.Error{
			Code: config.ErrCodeInvalid,
			Path: eff.LogFile,
			Err:  err,
		}))
		return exitFail
	}
	defer func() { _ = closeLog() }()

	logger.Debug("effective config",
		zap.String("source", eff.Source),
		zap.String("target", eff.Target),
		zap.String("config", eff.ConfigPath),
		zap.Bool("recursive", eff.Recursive),
		zap.Int("concurrency", eff.Concurrency))

	progressW, interactive := pickProgressWriter(e.stdout, e.stderr)
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	opts := run.Options{Action: action, Logger: logger}
	if eff.Interactive && action != domain.ActionDryRun {
		promptW := progressW
		if promptW == nil {
			promptW = e.stderr
		}
		opts.Confirm = confirmer(e.stdin, promptW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, opts, obs)

	// apply：写入 <target>/.autorename/report.json；dry-run 与取消时不落盘。
	if !rr.DryRun && !rr.Cancelled {
		if err := writeReportFile(eff.Target, rr); err != nil {
			logger.Error("writing report.json", zap.Error(err))
			emitReport(e.stdout, e.stderr, rr)
			return exitFail
		}
	}

	emitReport(e.stdout, e.stderr, rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if rr.Summary.Failed == 0 {
		return exitOK
	}
	return exitFail
}

// confirmer 返回 run.Options.Confirm：先列出计划，再询问是否继续。
func confirmer(in io.Reader, w io.Writer) func([]domain.FileResult) bool {
	return func(items []domain.FileResult) bool {
		fmt.Fprintln(w, "计划:")
		for _, it := range items {
			note := ""
			if it.Duplicate {
				note = " (duplicate)"
			}
			fmt.Fprintf(w, "  %s -> %s%s\n", it.Src, it.Dst, note)
		}
		fmt.Fprint(w, "Do you want to continue? [Y/n] ")

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false
		}
		// 没有任何输入（stdin 已关闭）按拒绝处理。
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(w)
			return false
		}
		return confirmed(line)
	}
}

// confirmed 只接受空行、y、Y。
func confirmed(line string) bool {
	switch strings.TrimSpace(line) {
	case "", "y", "Y":
		return true
	default:
		return false
	}
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	s := rr.Summary
	summary := fmt.Sprintf("完成：planned=%d renamed=%d copied=%d unchanged=%d duplicates=%d unresolved=%d failed=%d",
		s.Planned, s.Renamed, s.Copied, s.Unchanged, s.Duplicates, s.Unresolved, s.Failed)
	if rr.Cancelled {
		summary += " (已取消)"
	}

	if isTTY(stdout) {
		fmt.Fprintln(stdout, summary)
		for _, it := range rr.Items {
			if it.Status != domain.FileStatusFailed {
				continue
			}
			key := it.Src
			if key == "" {
				key = "<batch>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summary)
}

func reportForConfigError(cwdAbs, action string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Source:     cwdAbs,
		Target:     cwdAbs,
		Action:     action,
		DryRun:     action == domain.ActionDryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileResult{{
			Status:    domain.FileStatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(target string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(target, scan.StateDirName), reportFileName, b)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	if w == nil {
		return
	}
	if !rr.DryRun && !rr.Cancelled {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Target, scan.StateDirName, reportFileName))
	}
	fmt.Fprintf(w, "target: %s\n", eff.Target)
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moyu-x/xmp-audit/app"
	"github.com/moyu-x/xmp-audit/config"
	"github.com/moyu-x/xmp-audit/internal"
	"github.com/moyu-x/xmp-audit/pkg/logger"
)

var auditCmd = &cobra.Command{
	Use:   "audit <root>",
	Short: "扫描目录树并统计缺少 sidecar 的图片",
	Long: `从 <root> 开始遍历所有目录，按扩展名识别图片（不区分大小写），
检查同目录下是否存在同名 sidecar 文件，并输出:
- 被剪枝跳过的目录
- 每个至少有一张图片缺少 sidecar 的目录
- 按图片类型的最终汇总

剪枝规则只比较相对 <root> 的第 --skip-depth 段目录名（从 0 开始）。
扫描完成返回 0；根目录无法读取或计数校验失败时返回非 0。`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	opts := &app.AuditOptions{
		Root:          args[0],
		SkipNames:     cfg.Scan.SkipNames,
		SkipDepth:     cfg.Scan.SkipDepth,
		Types:         cfg.Scan.Types,
		SidecarExt:    cfg.Scan.SidecarExt,
		VerifyContent: cfg.Scan.VerifyContent,
		DBPath:        cfg.Report.Database,
		LogLevel:      cfg.Logging.Level,
		LogFile:       cfg.Logging.File,
		Verbose:       verbose,
		Out:           cmd.OutOrStdout(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := app.RunAudit(ctx, opts); err != nil {
		logger.Get().Error().Err(err).Msg("扫描失败")
		return err
	}

	return nil
}

func init() {
	auditCmd.Flags().StringSlice("skip", internal.DefaultSkipNames, "剪枝的目录名，可重复或用逗号分隔")
	auditCmd.Flags().Int("skip-depth", internal.DefaultSkipDepth, "剪枝比较的目录层级（相对根目录，从 0 开始）")
	auditCmd.Flags().StringSlice("types", internal.DefaultImageTypes, "识别的图片扩展名")
	auditCmd.Flags().String("sidecar-ext", internal.DefaultSidecarExt, "sidecar 扩展名")
	auditCmd.Flags().Bool("verify-content", false, "读取文件头，检查内容是否与扩展名一致")
	auditCmd.Flags().String("db", "", "把扫描结果写入 SQLite 数据库")
	auditCmd.Flags().String("log-level", "info", "日志级别")
	auditCmd.Flags().String("log-file", "", "日志文件路径")
	auditCmd.Flags().BoolP("verbose", "v", false, "显示调试日志")

	rootCmd.AddCommand(auditCmd)
}

package app

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/moyu-x/xmp-audit/pkg/audit"
	"github.com/moyu-x/xmp-audit/pkg/database"
	"github.com/moyu-x/xmp-audit/pkg/logger"
	"github.com/moyu-x/xmp-audit/pkg/report"
)

type AuditOptions struct {
	Root          string
	SkipNames     []string
	SkipDepth     int
	Types         []string
	SidecarExt    string
	VerifyContent bool
	DBPath        string
	LogLevel      string
	LogFile       string
	Verbose       bool

	// 测试时可替换
	Fs  afero.Fs
	Out io.Writer
}

// RunAudit 组装扫描引擎和报告输出，执行一次扫描
func RunAudit(ctx context.Context, opts *AuditOptions) (*audit.GlobalAggregate, error) {
	logLevel := opts.LogLevel
	if opts.Verbose {
		logLevel = "debug"
	}

	if err := logger.Init(logLevel, opts.LogFile); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger.With("run_id", runID)

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	cfg, err := audit.ScanConfig{
		Root:          opts.Root,
		SkipNames:     opts.SkipNames,
		SkipDepth:     opts.SkipDepth,
		Types:         opts.Types,
		SidecarExt:    opts.SidecarExt,
		VerifyContent: opts.VerifyContent,
	}.Normalize()
	if err != nil {
		return nil, err
	}

	reporters := report.Multi{report.NewTextReporter(out, cfg.SidecarExt, cfg.VerifyContent)}

	if opts.DBPath != "" {
		db, err := database.NewDatabase(opts.DBPath, runID, cfg.Root)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		reporters = append(reporters, db)
	}

	engine, err := audit.NewEngine(fs, cfg, reporters)
	if err != nil {
		return nil, err
	}

	return engine.Run(ctx)
}

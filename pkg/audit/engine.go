package audit

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
	"github.com/moyu-x/xmp-audit/pkg/logger"
	"github.com/moyu-x/xmp-audit/pkg/scanner"
	"github.com/moyu-x/xmp-audit/pkg/sidecar"
)

// Engine 单线程扫描：逐个目录访问、合并、报告，最后做一致性校验
type Engine struct {
	cfg      ScanConfig
	fs       afero.Fs
	reporter Reporter
	visitor  *Visitor
	types    []classifier.ImageType
}

// NewEngine 校验配置并组装各组件
func NewEngine(fs afero.Fs, cfg ScanConfig, reporter Reporter) (*Engine, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	cls := classifier.NewClassifier(cfg.Types)
	var sniffer *classifier.Sniffer
	if cfg.VerifyContent {
		sniffer = classifier.NewSniffer(fs)
	}

	return &Engine{
		cfg:      cfg,
		fs:       fs,
		reporter: reporter,
		visitor:  NewVisitor(cls, sidecar.NewResolver(fs, cfg.SidecarExt), sniffer),
		types:    cls.Types(),
	}, nil
}

// Config 返回规范化后的配置
func (e *Engine) Config() ScanConfig {
	return e.cfg
}

// Run 执行一次完整扫描
// 根目录不可读时在遍历前返回 ErrRootUnreadable；
// 被取消或校验失败时仍返回已汇总的结果
func (e *Engine) Run(ctx context.Context) (*GlobalAggregate, error) {
	if err := e.checkRoot(); err != nil {
		return nil, err
	}

	logger.Get().Info().
		Str("root", e.cfg.Root).
		Strs("skip_names", e.cfg.SkipNames).
		Int("skip_depth", e.cfg.SkipDepth).
		Strs("types", e.cfg.Types).
		Str("sidecar_ext", e.cfg.SidecarExt).
		Msg("开始扫描")

	agg := NewAggregator(e.types, e.reporter)

	walker := scanner.NewFileWalker(e.fs, e.cfg.SkipNames, e.cfg.SkipDepth)
	walker.OnSkip = agg.Skip
	walker.OnError = func(path string, err error) {
		agg.Unreadable(path)
	}

	walkErr := walker.Walk(e.cfg.Root, func(dir scanner.Directory) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		agg.StartFolder(dir.Path)
		agg.Merge(e.visitor.Visit(dir.Path, dir.Files))
		return nil
	})

	result, err := agg.Finalize()
	if walkErr != nil {
		logger.Get().Warn().Err(walkErr).Msg("扫描未完成，已输出部分结果")
		return result, fmt.Errorf("扫描中断: %w", walkErr)
	}
	if err != nil {
		return result, err
	}

	logger.Get().Info().
		Int("folders", result.VisitedFolderCount).
		Int("files", result.TotalFileCount).
		Int("images", result.TotalImages).
		Int("missing", result.TotalWithoutSidecar).
		Msg("扫描完成")
	return result, nil
}

func (e *Engine) checkRoot() error {
	info, err := e.fs.Stat(e.cfg.Root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnreadable, e.cfg.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s 不是目录", ErrRootUnreadable, e.cfg.Root)
	}
	if _, err := afero.ReadDir(e.fs, e.cfg.Root); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnreadable, e.cfg.Root, err)
	}
	return nil
}

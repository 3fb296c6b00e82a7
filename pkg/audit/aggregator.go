package audit

import (
	"fmt"
	"strings"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
	"github.com/moyu-x/xmp-audit/pkg/logger"
)

// Reporter 接收扫描过程中的结构化事件
// 返回的错误只记录日志，不会中止扫描
type Reporter interface {
	FolderStart(dir string) error
	FolderSkipped(dir string) error
	// FolderSummary 只在目录中至少有一个文件缺少 sidecar 时调用
	FolderSummary(summary *FolderSummary) error
	FinalReport(agg *GlobalAggregate) error
}

// ConsistencyError 计数不一致，说明分类或计数有 bug
type ConsistencyError struct {
	Violations []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("计数一致性校验失败: %s", strings.Join(e.Violations, "; "))
}

// Aggregator 把每个目录的统计合并到全局计数，并驱动 Reporter
type Aggregator struct {
	agg        *GlobalAggregate
	reporter   Reporter
	known      map[classifier.ImageType]struct{}
	violations []string
}

func NewAggregator(types []classifier.ImageType, reporter Reporter) *Aggregator {
	known := make(map[classifier.ImageType]struct{}, len(types))
	for _, t := range types {
		known[t] = struct{}{}
	}
	return &Aggregator{
		agg:      NewGlobalAggregate(types),
		reporter: reporter,
		known:    known,
	}
}

// Aggregate 返回当前的全局计数
func (a *Aggregator) Aggregate() *GlobalAggregate {
	return a.agg
}

// StartFolder 通知开始访问目录
func (a *Aggregator) StartFolder(dir string) {
	a.notify("folder_start", dir, func(r Reporter) error { return r.FolderStart(dir) })
}

// Skip 记录一棵被剪枝的子树
func (a *Aggregator) Skip(dir string) {
	a.agg.SkippedFolderCount++
	a.notify("folder_skipped", dir, func(r Reporter) error { return r.FolderSkipped(dir) })
}

// Unreadable 记录一个无法读取的子目录
func (a *Aggregator) Unreadable(dir string) {
	a.agg.UnreadableFolderCount++
}

// Merge 合并一个目录的统计；summary 合并后即丢弃
func (a *Aggregator) Merge(s *FolderSummary) {
	a.checkFolder(s)

	g := a.agg
	g.VisitedFolderCount++
	g.TotalFileCount += s.TotalFiles
	g.ContentMismatches += s.ContentMismatches

	for t, count := range s.PerTypeCount {
		missing := s.PerTypeMissing[t]
		g.PerTypeTotal[t] += count
		g.PerTypeWithSidecar[t] += count - missing
		g.PerTypeWithoutSidecar[t] += missing
	}

	g.TotalImages += s.Recognized
	g.TotalWithSidecar += s.Recognized - len(s.Missing)
	g.TotalWithoutSidecar += len(s.Missing)

	if s.HasMissing() {
		g.addMissingFolder(s.Directory)
		a.notify("folder_summary", s.Directory, func(r Reporter) error { return r.FolderSummary(s) })
	}
}

// checkFolder 单个目录的一致性检查，违例留到 Finalize 统一报告
func (a *Aggregator) checkFolder(s *FolderSummary) {
	sum := 0
	for t, count := range s.PerTypeCount {
		sum += count
		if _, ok := a.known[t]; !ok {
			a.violate("%s: 未识别的类型 %q 被计数", s.Directory, t)
		}
		if missing := s.PerTypeMissing[t]; missing > count {
			a.violate("%s: %s 缺少 sidecar 数 %d 大于总数 %d", s.Directory, t, missing, count)
		}
	}
	for t, missing := range s.PerTypeMissing {
		if _, ok := s.PerTypeCount[t]; !ok && missing > 0 {
			a.violate("%s: %s 有缺失计数但没有总数", s.Directory, t)
		}
	}
	if sum > s.TotalFiles {
		a.violate("%s: 图片数 %d 大于文件数 %d", s.Directory, sum, s.TotalFiles)
	}
}

// Finalize 校验全局计数并输出最终报告
// 校验失败返回 *ConsistencyError，但已汇总的结果仍会报告并返回
func (a *Aggregator) Finalize() (*GlobalAggregate, error) {
	g := a.agg

	sum := 0
	for _, t := range g.allTypes() {
		total := g.PerTypeTotal[t]
		with := g.PerTypeWithSidecar[t]
		without := g.PerTypeWithoutSidecar[t]
		sum += total
		if total != with+without {
			a.violate("%s: 总数 %d != 有 sidecar %d + 无 sidecar %d", t, total, with, without)
		}
	}
	if sum != g.TotalImages {
		a.violate("按类型合计 %d != 图片总数 %d", sum, g.TotalImages)
	}
	if g.TotalImages != g.TotalWithSidecar+g.TotalWithoutSidecar {
		a.violate("图片总数 %d != 有 sidecar %d + 无 sidecar %d", g.TotalImages, g.TotalWithSidecar, g.TotalWithoutSidecar)
	}

	a.notify("final_report", "", func(r Reporter) error { return r.FinalReport(g) })

	if len(a.violations) > 0 {
		return g, &ConsistencyError{Violations: append([]string(nil), a.violations...)}
	}
	return g, nil
}

func (a *Aggregator) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Get().Error().Msg(msg)
	a.violations = append(a.violations, msg)
}

func (a *Aggregator) notify(event, dir string, fn func(Reporter) error) {
	if a.reporter == nil {
		return
	}
	if err := fn(a.reporter); err != nil {
		logger.Get().Error().Err(err).Str("event", event).Str("dir", dir).Msg("输出报告失败")
	}
}

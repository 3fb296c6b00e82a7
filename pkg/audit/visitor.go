package audit

import (
	"path/filepath"
	"sort"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
	"github.com/moyu-x/xmp-audit/pkg/logger"
	"github.com/moyu-x/xmp-audit/pkg/sidecar"
)

// Visitor 统计单个目录中的图片及其 sidecar
type Visitor struct {
	classifier *classifier.Classifier
	resolver   *sidecar.Resolver
	sniffer    *classifier.Sniffer // 为 nil 时不做内容校验
}

func NewVisitor(c *classifier.Classifier, r *sidecar.Resolver, s *classifier.Sniffer) *Visitor {
	return &Visitor{
		classifier: c,
		resolver:   r,
		sniffer:    s,
	}
}

// Visit 返回目录 dir 的统计结果，文件顺序不影响结果
func (v *Visitor) Visit(dir string, names []string) *FolderSummary {
	summary := NewFolderSummary(dir)

	for _, name := range names {
		summary.TotalFiles++

		t, ok := v.classifier.Classify(name)
		if !ok {
			continue
		}

		rec := FileRecord{
			Directory:  dir,
			Name:       name,
			Type:       t,
			HasSidecar: v.resolver.Exists(dir, name),
		}
		summary.add(rec)

		if !rec.HasSidecar {
			logger.Get().Trace().Str("dir", dir).Str("file", name).Msg("缺少 sidecar")
		}

		if v.sniffer != nil && !v.verify(rec) {
			summary.ContentMismatches++
		}
	}

	sort.Strings(summary.Missing)
	return summary
}

// verify 返回 false 表示文件内容与扩展名不符
func (v *Visitor) verify(rec FileRecord) bool {
	path := filepath.Join(rec.Directory, rec.Name)
	verdict, detected, err := v.sniffer.Verify(path, rec.Type)
	if err != nil {
		logger.Get().Warn().Err(err).Str("file", path).Msg("内容校验失败")
		return true
	}
	if verdict == classifier.VerdictMismatch {
		logger.Get().Warn().
			Str("file", path).
			Str("expected", string(rec.Type)).
			Str("detected", detected).
			Msg("文件内容与扩展名不符")
		return false
	}
	return true
}

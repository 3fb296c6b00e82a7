package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moyu-x/xmp-audit/pkg/audit"
	"github.com/moyu-x/xmp-audit/pkg/logger"
)

// TextReporter 按行输出扫描报告
type TextReporter struct {
	out        io.Writer
	sidecarExt string
	verify     bool

	heading lipgloss.Style
	notice  lipgloss.Style
}

// NewTextReporter 创建文本报告；写入非终端时输出纯文本
func NewTextReporter(w io.Writer, sidecarExt string, verify bool) *TextReporter {
	r := lipgloss.NewRenderer(w)
	return &TextReporter{
		out:        w,
		sidecarExt: sidecarExt,
		verify:     verify,
		heading:    r.NewStyle().Bold(true),
		notice:     r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func (t *TextReporter) FolderStart(dir string) error {
	logger.Get().Debug().Str("dir", dir).Msg("访问目录")
	return nil
}

func (t *TextReporter) FolderSkipped(dir string) error {
	lw := &lineWriter{w: t.out}
	lw.println(t.notice.Render("跳过目录: " + dir))
	return lw.err
}

// FolderSummary 只列出缺少 sidecar 的类型
func (t *TextReporter) FolderSummary(s *audit.FolderSummary) error {
	parts := make([]string, 0, len(s.PerTypeMissing))
	for _, typ := range s.MissingTypes() {
		parts = append(parts, fmt.Sprintf("%s=%d", typ, s.PerTypeMissing[typ]))
	}

	lw := &lineWriter{w: t.out}
	lw.printf("%s: %d 个文件, 缺少 %s: %s", s.Directory, s.TotalFiles, t.sidecarExt, strings.Join(parts, " "))
	return lw.err
}

func (t *TextReporter) FinalReport(g *audit.GlobalAggregate) error {
	lw := &lineWriter{w: t.out}
	ext := t.sidecarExt

	lw.println(t.heading.Render("========== 扫描汇总 =========="))
	for _, typ := range g.Types {
		lw.printf("%s: 总数=%d 有%s=%d 无%s=%d",
			typ, g.PerTypeTotal[typ], ext, g.PerTypeWithSidecar[typ], ext, g.PerTypeWithoutSidecar[typ])
	}
	lw.printf("图片总数: %d", g.TotalImages)
	lw.printf("有 %s 的图片: %d", ext, g.TotalWithSidecar)
	lw.printf("无 %s 的图片: %d", ext, g.TotalWithoutSidecar)
	lw.printf("文件总数: %d", g.TotalFileCount)
	lw.printf("跳过目录数: %d", g.SkippedFolderCount)
	lw.printf("无法读取目录数: %d", g.UnreadableFolderCount)
	lw.printf("缺少 %s 的目录数: %d", ext, len(g.FoldersWithMissingSidecars))
	if t.verify {
		lw.printf("内容不符: %d", g.ContentMismatches)
	}
	lw.printf("指纹: %s", g.Fingerprint())
	lw.println(t.heading.Render("=============================="))
	return lw.err
}

// lineWriter 记录第一次写入错误，之后的写入全部跳过
type lineWriter struct {
	w   io.Writer
	err error
}

func (l *lineWriter) printf(format string, args ...any) {
	l.println(fmt.Sprintf(format, args...))
}

func (l *lineWriter) println(line string) {
	if l.err != nil {
		return
	}
	_, l.err = io.WriteString(l.w, line+"\n")
}

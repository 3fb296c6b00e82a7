package report

import (
	"errors"

	"github.com/moyu-x/xmp-audit/pkg/audit"
)

// Multi 把事件依次转发给多个 Reporter，单个失败不影响其余
type Multi []audit.Reporter

func (m Multi) FolderStart(dir string) error {
	return m.each(func(r audit.Reporter) error { return r.FolderStart(dir) })
}

func (m Multi) FolderSkipped(dir string) error {
	return m.each(func(r audit.Reporter) error { return r.FolderSkipped(dir) })
}

func (m Multi) FolderSummary(s *audit.FolderSummary) error {
	return m.each(func(r audit.Reporter) error { return r.FolderSummary(s) })
}

func (m Multi) FinalReport(g *audit.GlobalAggregate) error {
	return m.each(func(r audit.Reporter) error { return r.FinalReport(g) })
}

func (m Multi) each(fn func(audit.Reporter) error) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := fn(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package audit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
)

var (
	// ErrInvalidConfig 扫描参数不合法
	ErrInvalidConfig = errors.New("配置错误")
	// ErrRootUnreadable 扫描根目录不存在或无法读取
	ErrRootUnreadable = errors.New("扫描根目录无法读取")
)

// ScanConfig 单次扫描的固定输入，扫描期间不可修改
type ScanConfig struct {
	Root          string
	SkipNames     []string
	SkipDepth     int
	Types         []string // 小写、不带点的扩展名
	SidecarExt    string
	VerifyContent bool
}

// Normalize 返回去重、排序、小写化后的副本，并校验参数
func (c ScanConfig) Normalize() (ScanConfig, error) {
	out := ScanConfig{
		Root:          strings.TrimSpace(c.Root),
		SkipDepth:     c.SkipDepth,
		SidecarExt:    classifier.NormalizeExt(c.SidecarExt),
		VerifyContent: c.VerifyContent,
	}

	if out.Root == "" {
		return out, fmt.Errorf("%w: 未指定扫描根目录", ErrInvalidConfig)
	}
	if out.SkipDepth < 0 {
		return out, fmt.Errorf("%w: 剪枝深度不能为负数: %d", ErrInvalidConfig, out.SkipDepth)
	}
	if out.SidecarExt == "" {
		return out, fmt.Errorf("%w: 未指定 sidecar 扩展名", ErrInvalidConfig)
	}

	out.Types = normalizeSet(c.Types, classifier.NormalizeExt)
	if len(out.Types) == 0 {
		return out, fmt.Errorf("%w: 至少需要一种图片类型", ErrInvalidConfig)
	}
	for _, t := range out.Types {
		if t == out.SidecarExt {
			return out, fmt.Errorf("%w: sidecar 扩展名 %q 不能同时作为图片类型", ErrInvalidConfig, t)
		}
	}

	// 目录名区分大小写，只去掉空白
	out.SkipNames = normalizeSet(c.SkipNames, strings.TrimSpace)

	return out, nil
}

func normalizeSet(values []string, fn func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = fn(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

package classifier

import (
	"path/filepath"
	"sort"
	"strings"
)

// ImageType 图片类型标识，即小写且不带点的扩展名
type ImageType string

// Classifier 按扩展名白名单识别图片文件，不区分大小写
type Classifier struct {
	types map[ImageType]struct{}
}

func NewClassifier(types []string) *Classifier {
	c := &Classifier{
		types: make(map[ImageType]struct{}, len(types)),
	}
	for _, t := range types {
		if ext := NormalizeExt(t); ext != "" {
			c.types[ImageType(ext)] = struct{}{}
		}
	}
	return c
}

// Classify 返回文件名对应的图片类型；未识别时第二个返回值为 false
func (c *Classifier) Classify(name string) (ImageType, bool) {
	ext := Extension(name)
	if ext == "" {
		return "", false
	}
	t := ImageType(ext)
	if _, ok := c.types[t]; !ok {
		return "", false
	}
	return t, true
}

// Types 返回排序后的识别类型列表
func (c *Classifier) Types() []ImageType {
	types := make([]ImageType, 0, len(c.types))
	for t := range c.types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Extension 返回文件名的小写扩展名（不含点）
// 没有扩展名、以点结尾或仅以点开头的隐藏文件都返回空串
func Extension(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// NormalizeExt 去掉前导点和空白并转为小写
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

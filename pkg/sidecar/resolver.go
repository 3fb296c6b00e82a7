package sidecar

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/xmp-audit/pkg/logger"
)

// Resolver 判断图片文件旁边是否存在同名的 sidecar 元数据文件
// sidecar 只在图片所在目录中查找
type Resolver struct {
	fs  afero.Fs
	ext string
}

func NewResolver(fs afero.Fs, ext string) *Resolver {
	return &Resolver{
		fs:  fs,
		ext: strings.TrimPrefix(ext, "."),
	}
}

// Ext 返回 sidecar 扩展名（不含点）
func (r *Resolver) Ext() string {
	return r.ext
}

// Path 将文件名的最后一个扩展名替换为 sidecar 扩展名
func (r *Resolver) Path(dir, name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, stem+"."+r.ext)
}

// Exists 检查 sidecar 在调用时刻是否存在
// 与目录枚举不是原子操作，结果反映检查时的文件系统状态
func (r *Resolver) Exists(dir, name string) bool {
	path := r.Path(dir, name)
	ok, err := afero.Exists(r.fs, path)
	if err != nil {
		logger.Get().Warn().Err(err).Str("sidecar", path).Msg("检查 sidecar 失败，按缺失处理")
		return false
	}
	return ok
}

package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/xmp-audit/pkg/logger"
)

// Directory 一个目录及其直接包含的文件名
type Directory struct {
	Path  string
	Rel   string // 相对扫描根目录的路径，根目录为 "."
	Files []string
}

// WalkFunc 每访问一个目录调用一次；返回错误会中止遍历
type WalkFunc func(dir Directory) error

// FileWalker 按名称排序的先序遍历目录树
// 符号链接指向的目录按文件处理，不会进入，因此每个目录只访问一次
type FileWalker struct {
	Fs        afero.Fs
	SkipNames map[string]struct{}
	SkipDepth int

	// OnSkip 整棵子树被剪枝时调用一次
	OnSkip func(path string)
	// OnError 子目录无法读取时调用，遍历继续
	OnError func(path string, err error)
}

func NewFileWalker(fs afero.Fs, skipNames []string, skipDepth int) *FileWalker {
	names := make(map[string]struct{}, len(skipNames))
	for _, name := range skipNames {
		names[name] = struct{}{}
	}
	return &FileWalker{
		Fs:        fs,
		SkipNames: names,
		SkipDepth: skipDepth,
	}
}

// Walk 从 root 开始遍历。root 本身无法读取时直接返回错误
func (w *FileWalker) Walk(root string, fn WalkFunc) error {
	entries, err := afero.ReadDir(w.Fs, root)
	if err != nil {
		return err
	}
	return w.walk(root, ".", entries, fn)
}

func (w *FileWalker) walk(path, rel string, entries []os.FileInfo, fn WalkFunc) error {
	var files, dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}

	if err := fn(Directory{Path: path, Rel: rel, Files: files}); err != nil {
		return err
	}

	for _, name := range dirs {
		childPath := filepath.Join(path, name)
		childRel := name
		if rel != "." {
			childRel = filepath.Join(rel, name)
		}

		if w.ShouldSkip(childRel) {
			logger.Get().Debug().Str("dir", childPath).Msg("剪枝跳过目录")
			if w.OnSkip != nil {
				w.OnSkip(childPath)
			}
			continue
		}

		children, err := afero.ReadDir(w.Fs, childPath)
		if err != nil {
			logger.Get().Warn().Err(err).Str("dir", childPath).Msg("读取目录失败，跳过该子树")
			if w.OnError != nil {
				w.OnError(childPath, err)
			}
			continue
		}

		if err := w.walk(childPath, childRel, children, fn); err != nil {
			return err
		}
	}

	return nil
}

// ShouldSkip 判断相对路径 rel 是否需要剪枝
// 只比较第 SkipDepth 段（从 0 开始），不会在路径其他位置匹配
func (w *FileWalker) ShouldSkip(rel string) bool {
	if rel == "" || rel == "." || w.SkipDepth < 0 {
		return false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) <= w.SkipDepth {
		return false
	}
	_, ok := w.SkipNames[segments[w.SkipDepth]]
	return ok
}

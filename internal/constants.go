package internal

const (
	// 默认 sidecar 扩展名（不含点）
	DefaultSidecarExt = "xmp"

	// 默认剪枝深度：相对扫描根目录的第二级目录
	DefaultSkipDepth = 1

	// 读取文件头用于内容校验的字节数
	FileHeaderSize = 261

	// 环境变量前缀
	EnvPrefix = "XMPAUDIT"
)

// DefaultImageTypes 默认识别的图片扩展名
var DefaultImageTypes = []string{"dng", "nef", "raf", "rw2", "jpg", "tif"}

// DefaultSkipNames 默认跳过的目录名
var DefaultSkipNames = []string{"scan"}

package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/spf13/afero"

	"github.com/moyu-x/xmp-audit/internal"
)

// Verdict 内容校验结果
type Verdict int

const (
	// VerdictUnknown 该类型没有可识别的文件头签名
	VerdictUnknown Verdict = iota
	VerdictMatch
	VerdictMismatch
)

func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

var (
	rafType = filetype.NewType("raf", "image/x-fuji-raf")
	rw2Type = filetype.NewType("rw2", "image/x-panasonic-rw2")
)

var rafMagic = []byte("FUJIFILMCCD-RAW")

func init() {
	filetype.AddMatcher(rafType, func(buf []byte) bool {
		return bytes.HasPrefix(buf, rafMagic)
	})
	filetype.AddMatcher(rw2Type, func(buf []byte) bool {
		return len(buf) >= 4 && buf[0] == 0x49 && buf[1] == 0x49 && buf[2] == 0x55 && buf[3] == 0x00
	})
}

// signatures 扩展名到 filetype 检测结果的映射
// DNG 和 NEF 都是 TIFF 容器，文件头与 tif 相同
var signatures = map[ImageType]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"tif":  "tif",
	"tiff": "tif",
	"dng":  "tif",
	"nef":  "tif",
	"raf":  "raf",
	"rw2":  "rw2",
	"png":  "png",
	"cr2":  "cr2",
}

// Sniffer 读取文件头，检查内容是否与扩展名一致
type Sniffer struct {
	Fs afero.Fs
}

func NewSniffer(fs afero.Fs) *Sniffer {
	return &Sniffer{Fs: fs}
}

// Verify 校验 path 的文件内容是否符合图片类型 t
// 返回检测到的扩展名，未检测到时为空串
func (s *Sniffer) Verify(path string, t ImageType) (Verdict, string, error) {
	expected, ok := signatures[t]
	if !ok {
		return VerdictUnknown, "", nil
	}

	head, err := s.readFileHeader(path, internal.FileHeaderSize)
	if err != nil {
		return VerdictUnknown, "", err
	}

	kind, err := filetype.Match(head)
	if err != nil && !errors.Is(err, filetype.ErrEmptyBuffer) {
		return VerdictUnknown, "", fmt.Errorf("检测文件类型失败: %w", err)
	}
	if kind == types.Unknown {
		return VerdictMismatch, "", nil
	}
	if kind.Extension != expected {
		return VerdictMismatch, kind.Extension, nil
	}
	return VerdictMatch, kind.Extension, nil
}

// readFileHeader 读取文件的前 size 个字节
func (s *Sniffer) readFileHeader(path string, size int) ([]byte, error) {
	file, err := s.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	head := make([]byte, size)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("读取文件头部失败: %w", err)
	}
	return head[:n], nil
}

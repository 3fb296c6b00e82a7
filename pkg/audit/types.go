package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
)

// FileRecord 单个已识别图片文件的检查结果，仅在访问目录时临时使用
type FileRecord struct {
	Directory  string
	Name       string
	Type       classifier.ImageType
	HasSidecar bool
}

// FolderSummary 单个目录的统计，每个目录重新创建，不跨目录累加
type FolderSummary struct {
	Directory      string
	PerTypeCount   map[classifier.ImageType]int
	PerTypeMissing map[classifier.ImageType]int
	TotalFiles     int

	Recognized        int      // 已识别的图片数
	Missing           []string // 缺少 sidecar 的文件名，已排序
	ContentMismatches int
}

func NewFolderSummary(dir string) *FolderSummary {
	return &FolderSummary{
		Directory:      dir,
		PerTypeCount:   make(map[classifier.ImageType]int),
		PerTypeMissing: make(map[classifier.ImageType]int),
	}
}

func (s *FolderSummary) add(rec FileRecord) {
	s.Recognized++
	s.PerTypeCount[rec.Type]++
	if !rec.HasSidecar {
		s.PerTypeMissing[rec.Type]++
		s.Missing = append(s.Missing, rec.Name)
	}
}

// HasMissing 目录中是否有任意类型的图片缺少 sidecar
func (s *FolderSummary) HasMissing() bool {
	for _, n := range s.PerTypeMissing {
		if n > 0 {
			return true
		}
	}
	return false
}

// MissingTypes 返回缺少 sidecar 的类型，已排序
func (s *FolderSummary) MissingTypes() []classifier.ImageType {
	var types []classifier.ImageType
	for t, n := range s.PerTypeMissing {
		if n > 0 {
			types = append(types, t)
		}
	}
	sortTypes(types)
	return types
}

// GlobalAggregate 整次扫描的全局计数，只增不减
type GlobalAggregate struct {
	Types []classifier.ImageType

	PerTypeTotal          map[classifier.ImageType]int
	PerTypeWithSidecar    map[classifier.ImageType]int
	PerTypeWithoutSidecar map[classifier.ImageType]int

	// 与按类型计数独立累加，用于一致性校验
	TotalImages         int
	TotalWithSidecar    int
	TotalWithoutSidecar int

	TotalFileCount             int
	SkippedFolderCount         int
	UnreadableFolderCount      int
	VisitedFolderCount         int
	ContentMismatches          int
	FoldersWithMissingSidecars []string

	missingSet map[string]struct{}
}

func NewGlobalAggregate(types []classifier.ImageType) *GlobalAggregate {
	a := &GlobalAggregate{
		Types:                 append([]classifier.ImageType(nil), types...),
		PerTypeTotal:          make(map[classifier.ImageType]int),
		PerTypeWithSidecar:    make(map[classifier.ImageType]int),
		PerTypeWithoutSidecar: make(map[classifier.ImageType]int),
		missingSet:            make(map[string]struct{}),
	}
	sortTypes(a.Types)
	for _, t := range a.Types {
		a.PerTypeTotal[t] = 0
		a.PerTypeWithSidecar[t] = 0
		a.PerTypeWithoutSidecar[t] = 0
	}
	return a
}

func (a *GlobalAggregate) addMissingFolder(dir string) {
	if _, ok := a.missingSet[dir]; ok {
		return
	}
	a.missingSet[dir] = struct{}{}
	a.FoldersWithMissingSidecars = append(a.FoldersWithMissingSidecars, dir)
}

// Fingerprint 对全部计数做 xxHash，同一未改动的目录树多次扫描结果相同
func (a *GlobalAggregate) Fingerprint() string {
	var b strings.Builder
	for _, t := range a.allTypes() {
		fmt.Fprintf(&b, "%s %d %d %d\n", t, a.PerTypeTotal[t], a.PerTypeWithSidecar[t], a.PerTypeWithoutSidecar[t])
	}
	fmt.Fprintf(&b, "images %d %d %d\n", a.TotalImages, a.TotalWithSidecar, a.TotalWithoutSidecar)
	fmt.Fprintf(&b, "files %d skipped %d unreadable %d visited %d mismatches %d\n",
		a.TotalFileCount, a.SkippedFolderCount, a.UnreadableFolderCount, a.VisitedFolderCount, a.ContentMismatches)
	for _, dir := range a.FoldersWithMissingSidecars {
		b.WriteString(dir)
		b.WriteByte('\n')
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// allTypes 识别类型与实际出现过的类型的并集
func (a *GlobalAggregate) allTypes() []classifier.ImageType {
	seen := make(map[classifier.ImageType]struct{}, len(a.PerTypeTotal))
	types := make([]classifier.ImageType, 0, len(a.PerTypeTotal))
	for _, t := range a.Types {
		seen[t] = struct{}{}
		types = append(types, t)
	}
	for t := range a.PerTypeTotal {
		if _, ok := seen[t]; !ok {
			types = append(types, t)
		}
	}
	sortTypes(types)
	return types
}

func sortTypes(types []classifier.ImageType) {
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
}

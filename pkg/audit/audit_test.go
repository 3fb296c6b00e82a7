package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-x/xmp-audit/pkg/classifier"
	"github.com/moyu-x/xmp-audit/pkg/sidecar"
)

var referenceTypes = []string{"dng", "nef", "raf", "rw2", "jpg", "tif"}

// recorder 记录收到的所有事件
type recorder struct {
	started   []string
	skipped   []string
	summaries []*FolderSummary
	final     *GlobalAggregate
	finals    int
	fail      error
}

func (r *recorder) FolderStart(dir string) error {
	r.started = append(r.started, dir)
	return r.fail
}

func (r *recorder) FolderSkipped(dir string) error {
	r.skipped = append(r.skipped, dir)
	return r.fail
}

func (r *recorder) FolderSummary(s *FolderSummary) error {
	r.summaries = append(r.summaries, s)
	return r.fail
}

func (r *recorder) FinalReport(agg *GlobalAggregate) error {
	r.final = agg
	r.finals++
	return r.fail
}

func writeFiles(t *testing.T, fs afero.Fs, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(f), 0755))
		require.NoError(t, afero.WriteFile(fs, f, []byte("data"), 0644))
	}
}

func newVisitor(fs afero.Fs) *Visitor {
	return NewVisitor(classifier.NewClassifier(referenceTypes), sidecar.NewResolver(fs, "xmp"), nil)
}

func scanConfig(root string) ScanConfig {
	return ScanConfig{
		Root:       root,
		SkipNames:  []string{"scan"},
		SkipDepth:  1,
		Types:      referenceTypes,
		SidecarExt: "xmp",
	}
}

func TestVisitor_Visit(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		"/a/1.nef", "/a/1.xmp",
		"/a/2.dng",
		"/a/3.JPG", "/a/3.xmp",
		"/a/4.jpg",
		"/a/README",
		"/a/notes.txt",
	)
	names := []string{"1.nef", "1.xmp", "2.dng", "3.JPG", "3.xmp", "4.jpg", "README", "notes.txt"}

	s := newVisitor(fs).Visit("/a", names)

	assert.Equal(t, "/a", s.Directory)
	assert.Equal(t, len(names), s.TotalFiles)
	assert.Equal(t, 4, s.Recognized)
	assert.Equal(t, map[classifier.ImageType]int{"nef": 1, "dng": 1, "jpg": 2}, s.PerTypeCount)
	assert.Equal(t, map[classifier.ImageType]int{"dng": 1, "jpg": 1}, s.PerTypeMissing)
	assert.Equal(t, []string{"2.dng", "4.jpg"}, s.Missing)
	assert.True(t, s.HasMissing())
	assert.Equal(t, []classifier.ImageType{"dng", "jpg"}, s.MissingTypes())
}

func TestVisitor_OrderIndependent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/a/1.nef", "/a/1.xmp", "/a/2.dng", "/a/3.raf", "/a/x.txt")

	v := newVisitor(fs)
	forward := v.Visit("/a", []string{"1.nef", "1.xmp", "2.dng", "3.raf", "x.txt"})
	backward := v.Visit("/a", []string{"x.txt", "3.raf", "2.dng", "1.xmp", "1.nef"})

	assert.Equal(t, forward, backward)
}

func TestVisitor_MissingNeverExceedsCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/a/1.nef", "/a/2.nef", "/a/2.xmp", "/a/3.tif", "/a/4.rw2", "/a/4.xmp")

	s := newVisitor(fs).Visit("/a", []string{"1.nef", "2.nef", "2.xmp", "3.tif", "4.rw2", "4.xmp"})

	for typ, count := range s.PerTypeCount {
		assert.LessOrEqual(t, s.PerTypeMissing[typ], count, typ)
	}
}

func TestVisitor_VerifyContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a/ok.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}, 0644))
	require.NoError(t, afero.WriteFile(fs, "/a/fake.jpg", []byte("not a jpeg at all"), 0644))

	v := NewVisitor(classifier.NewClassifier(referenceTypes), sidecar.NewResolver(fs, "xmp"), classifier.NewSniffer(fs))
	s := v.Visit("/a", []string{"fake.jpg", "ok.jpg"})

	assert.Equal(t, 1, s.ContentMismatches)
	assert.Equal(t, 2, s.PerTypeMissing["jpg"], "verification does not change sidecar counts")
}

func TestAggregator_MergeResetsPerFolder(t *testing.T) {
	rec := &recorder{}
	a := NewAggregator([]classifier.ImageType{"dng", "nef"}, rec)

	first := NewFolderSummary("/a")
	first.TotalFiles = 2
	first.add(FileRecord{Directory: "/a", Name: "1.dng", Type: "dng"})
	first.add(FileRecord{Directory: "/a", Name: "2.nef", Type: "nef", HasSidecar: true})
	a.Merge(first)

	second := NewFolderSummary("/b")
	second.TotalFiles = 1
	second.add(FileRecord{Directory: "/b", Name: "3.nef", Type: "nef", HasSidecar: true})
	a.Merge(second)

	require.Len(t, rec.summaries, 1, "only folders with gaps are reported")
	assert.Equal(t, "/a", rec.summaries[0].Directory)

	g := a.Aggregate()
	assert.Equal(t, 3, g.TotalFileCount)
	assert.Equal(t, 1, g.PerTypeTotal["dng"])
	assert.Equal(t, 0, g.PerTypeWithSidecar["dng"])
	assert.Equal(t, 1, g.PerTypeWithoutSidecar["dng"])
	assert.Equal(t, 2, g.PerTypeTotal["nef"])
	assert.Equal(t, 2, g.PerTypeWithSidecar["nef"])
	assert.Equal(t, []string{"/a"}, g.FoldersWithMissingSidecars)

	result, err := a.Finalize()
	require.NoError(t, err)
	assert.Same(t, g, result)
	assert.Equal(t, 1, rec.finals)
}

func TestAggregator_FinalizeDetectsInconsistency(t *testing.T) {
	rec := &recorder{}
	a := NewAggregator([]classifier.ImageType{"jpg"}, rec)

	bad := NewFolderSummary("/x")
	bad.TotalFiles = 1
	bad.PerTypeCount["jpg"] = 1
	bad.PerTypeMissing["jpg"] = 2
	a.Merge(bad)

	result, err := a.Finalize()

	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.NotEmpty(t, cerr.Violations)
	require.NotNil(t, result, "partial result is still returned")
	assert.Equal(t, 1, rec.finals, "final report is still emitted")
}

func TestAggregator_FinalizeDetectsUnrecordedImages(t *testing.T) {
	a := NewAggregator([]classifier.ImageType{"jpg"}, nil)

	// 按类型计数与独立计数不一致
	s := NewFolderSummary("/x")
	s.TotalFiles = 3
	s.PerTypeCount["jpg"] = 3
	a.Merge(s)

	_, err := a.Finalize()
	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "图片总数")
}

func TestAggregator_ReporterErrorsDoNotAbort(t *testing.T) {
	rec := &recorder{fail: errors.New("disk full")}
	a := NewAggregator([]classifier.ImageType{"jpg"}, rec)

	a.StartFolder("/a")
	a.Skip("/a/scan")
	s := NewFolderSummary("/a")
	s.TotalFiles = 1
	s.add(FileRecord{Directory: "/a", Name: "1.jpg", Type: "jpg"})
	a.Merge(s)

	result, err := a.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedFolderCount)
	assert.Equal(t, 1, result.PerTypeWithoutSidecar["jpg"])
	assert.Equal(t, 1, rec.finals)
}

func TestEngine_Scenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/root/a/1.nef", "/root/a/1.xmp", "/root/a/2.dng", "/root/a/scan/3.jpg")

	rec := &recorder{}
	e, err := NewEngine(fs, scanConfig("/root"), rec)
	require.NoError(t, err)

	g, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, g.PerTypeTotal["nef"])
	assert.Equal(t, 1, g.PerTypeWithSidecar["nef"])
	assert.Equal(t, 0, g.PerTypeWithoutSidecar["nef"])
	assert.Equal(t, 1, g.PerTypeTotal["dng"])
	assert.Equal(t, 0, g.PerTypeWithSidecar["dng"])
	assert.Equal(t, 1, g.PerTypeWithoutSidecar["dng"])
	assert.Equal(t, 0, g.PerTypeTotal["jpg"])
	assert.Equal(t, 1, g.SkippedFolderCount)
	assert.Equal(t, 3, g.TotalFileCount)
	assert.Equal(t, 2, g.TotalImages)

	a := filepath.Join("/root", "a")
	assert.Equal(t, []string{filepath.Join(a, "scan")}, rec.skipped)
	assert.Equal(t, []string{"/root", a}, rec.started)
	require.Len(t, rec.summaries, 1)
	assert.Equal(t, a, rec.summaries[0].Directory)
	assert.Equal(t, []classifier.ImageType{"dng"}, rec.summaries[0].MissingTypes())
	assert.Equal(t, []string{a}, g.FoldersWithMissingSidecars)
	assert.Same(t, g, rec.final)
}

func TestEngine_EmptyTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/root", 0755))

	rec := &recorder{}
	e, err := NewEngine(fs, scanConfig("/root"), rec)
	require.NoError(t, err)

	g, err := e.Run(context.Background())
	require.NoError(t, err)

	for _, typ := range g.Types {
		assert.Zero(t, g.PerTypeTotal[typ])
		assert.Zero(t, g.PerTypeWithSidecar[typ])
		assert.Zero(t, g.PerTypeWithoutSidecar[typ])
	}
	assert.Len(t, g.Types, len(referenceTypes))
	assert.Zero(t, g.TotalFileCount)
	assert.Zero(t, g.SkippedFolderCount)
	assert.Empty(t, rec.summaries)
	assert.Equal(t, 1, rec.finals)
}

func TestEngine_ExtensionlessFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/root/README")

	e, err := NewEngine(fs, scanConfig("/root"), nil)
	require.NoError(t, err)

	g, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g.TotalFileCount)
	assert.Zero(t, g.TotalImages)
}

func TestEngine_Invariant(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		"/root/2021/a.nef", "/root/2021/a.xmp", "/root/2021/b.NEF",
		"/root/2022/x/c.jpg", "/root/2022/x/c.xmp", "/root/2022/x/d.tif",
		"/root/2022/y/e.raf", "/root/2022/y/f.rw2", "/root/2022/y/f.xmp",
		"/root/2022/scan/g.jpg",
		"/root/h.dng",
	)

	e, err := NewEngine(fs, scanConfig("/root"), nil)
	require.NoError(t, err)
	g, err := e.Run(context.Background())
	require.NoError(t, err)

	sum := 0
	for _, typ := range g.Types {
		assert.Equal(t, g.PerTypeTotal[typ], g.PerTypeWithSidecar[typ]+g.PerTypeWithoutSidecar[typ], typ)
		sum += g.PerTypeTotal[typ]
	}
	assert.Equal(t, g.TotalImages, sum)
	assert.Equal(t, 7, g.TotalImages)
	assert.Equal(t, 1, g.SkippedFolderCount)
}

func TestEngine_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/root/a/1.nef", "/root/a/1.xmp", "/root/b/2.jpg", "/root/b/c/3.dng")

	run := func() *GlobalAggregate {
		e, err := NewEngine(fs, scanConfig("/root"), nil)
		require.NoError(t, err)
		g, err := e.Run(context.Background())
		require.NoError(t, err)
		return g
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	writeFiles(t, fs, "/root/b/2.xmp")
	assert.NotEqual(t, first.Fingerprint(), run().Fingerprint())
}

func TestEngine_RootErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/file.jpg")

	e, err := NewEngine(fs, scanConfig("/missing"), nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRootUnreadable)

	e, err = NewEngine(fs, scanConfig("/file.jpg"), nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRootUnreadable)
}

func TestEngine_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/root/a/1.jpg")

	rec := &recorder{}
	e, err := NewEngine(fs, scanConfig("/root"), rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, g)
	assert.Equal(t, 1, rec.finals)
}

func TestScanConfig_Normalize(t *testing.T) {
	cfg, err := ScanConfig{
		Root:       " /photos ",
		SkipNames:  []string{"scan", " scan", "", "Export"},
		SkipDepth:  2,
		Types:      []string{".JPG", "nef", "jpg"},
		SidecarExt: ".XMP",
	}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, "/photos", cfg.Root)
	assert.Equal(t, []string{"Export", "scan"}, cfg.SkipNames)
	assert.Equal(t, []string{"jpg", "nef"}, cfg.Types)
	assert.Equal(t, "xmp", cfg.SidecarExt)
	assert.Equal(t, 2, cfg.SkipDepth)
}

func TestScanConfig_NormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ScanConfig
	}{
		{"no root", ScanConfig{Types: []string{"jpg"}, SidecarExt: "xmp"}},
		{"no types", ScanConfig{Root: "/p", SidecarExt: "xmp"}},
		{"no sidecar", ScanConfig{Root: "/p", Types: []string{"jpg"}}},
		{"negative depth", ScanConfig{Root: "/p", Types: []string{"jpg"}, SidecarExt: "xmp", SkipDepth: -1}},
		{"sidecar is a type", ScanConfig{Root: "/p", Types: []string{"jpg", "XMP"}, SidecarExt: "xmp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Normalize()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

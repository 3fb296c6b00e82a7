package database

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moyu-x/xmp-audit/pkg/audit"
	"github.com/moyu-x/xmp-audit/pkg/logger"
)

// ScanRun 一次扫描的汇总
type ScanRun struct {
	ID                string `gorm:"primaryKey"`
	Root              string `gorm:"not null"`
	StartedAt         time.Time
	FinishedAt        *time.Time
	TotalFiles        int
	TotalImages       int
	WithSidecar       int
	WithoutSidecar    int
	SkippedFolders    int
	UnreadableFolders int
	ContentMismatches int
	Fingerprint       string
}

// TypeTotal 一次扫描中某个图片类型的合计
type TypeTotal struct {
	ID             int64  `gorm:"primaryKey"`
	RunID          string `gorm:"index;not null"`
	ImageType      string `gorm:"not null"`
	Total          int
	WithSidecar    int
	WithoutSidecar int
}

// FolderGap 某个目录中某个类型缺少 sidecar 的情况
type FolderGap struct {
	ID        int64  `gorm:"primaryKey"`
	RunID     string `gorm:"index;not null"`
	Directory string `gorm:"not null"`
	ImageType string `gorm:"not null"`
	Images    int
	Missing   int
}

// MissingFile 缺少 sidecar 的单个文件
type MissingFile struct {
	ID        int64  `gorm:"primaryKey"`
	RunID     string `gorm:"index;not null"`
	Directory string `gorm:"not null"`
	Name      string `gorm:"not null"`
}

// SkippedFolder 被剪枝的目录
type SkippedFolder struct {
	ID        int64  `gorm:"primaryKey"`
	RunID     string `gorm:"index;not null"`
	Directory string `gorm:"not null"`
}

// Database 把扫描事件写入 SQLite，实现 audit.Reporter
// 只写不读，不作为下次扫描的输入
type Database struct {
	db    *gorm.DB
	runID string
}

func NewDatabase(dbPath, runID, root string) (*Database, error) {
	expandedPath, err := expandPath(dbPath)
	if err != nil {
		logger.Get().Error().Err(err).Msg("扩展数据库路径失败")
		return nil, err
	}

	logger.Get().Info().Msgf("初始化数据库，路径: %s", expandedPath)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		logger.Get().Error().Err(err).Msgf("创建数据库目录失败: %s", filepath.Dir(expandedPath))
		return nil, err
	}

	dsn := expandedPath + "?_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Get().Error().Err(err).Msg("打开数据库连接失败")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Get().Error().Err(err).Msg("获取数据库连接失败")
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		logger.Get().Error().Err(err).Msg("创建数据库表失败")
		return nil, err
	}

	run := &ScanRun{ID: runID, Root: root, StartedAt: time.Now()}
	if err := db.Create(run).Error; err != nil {
		logger.Get().Error().Err(err).Msgf("创建扫描记录失败: %s", runID)
		return nil, err
	}

	logger.Get().Info().Msg("数据库初始化完成")
	return &Database{db: db, runID: runID}, nil
}

func expandPath(path string) (string, error) {
	if len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\') {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func createSchema(db *gorm.DB) error {
	return db.AutoMigrate(&ScanRun{}, &TypeTotal{}, &FolderGap{}, &MissingFile{}, &SkippedFolder{})
}

// RunID 返回本次扫描的 ID
func (d *Database) RunID() string {
	return d.runID
}

func (d *Database) FolderStart(string) error {
	return nil
}

func (d *Database) FolderSkipped(dir string) error {
	return d.db.Create(&SkippedFolder{RunID: d.runID, Directory: dir}).Error
}

func (d *Database) FolderSummary(s *audit.FolderSummary) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range s.MissingTypes() {
			gap := &FolderGap{
				RunID:     d.runID,
				Directory: s.Directory,
				ImageType: string(t),
				Images:    s.PerTypeCount[t],
				Missing:   s.PerTypeMissing[t],
			}
			if err := tx.Create(gap).Error; err != nil {
				return err
			}
		}
		for _, name := range s.Missing {
			if err := tx.Create(&MissingFile{RunID: d.runID, Directory: s.Directory, Name: name}).Error; err != nil {
				return err
			}
		}
		logger.Get().Trace().Str("dir", s.Directory).Int("missing", len(s.Missing)).Msg("记录缺失目录")
		return nil
	})
}

func (d *Database) FinalReport(g *audit.GlobalAggregate) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range g.Types {
			total := &TypeTotal{
				RunID:          d.runID,
				ImageType:      string(t),
				Total:          g.PerTypeTotal[t],
				WithSidecar:    g.PerTypeWithSidecar[t],
				WithoutSidecar: g.PerTypeWithoutSidecar[t],
			}
			if err := tx.Create(total).Error; err != nil {
				return err
			}
		}

		finished := time.Now()
		return tx.Model(&ScanRun{}).Where("id = ?", d.runID).Updates(map[string]any{
			"finished_at":        &finished,
			"total_files":        g.TotalFileCount,
			"total_images":       g.TotalImages,
			"with_sidecar":       g.TotalWithSidecar,
			"without_sidecar":    g.TotalWithoutSidecar,
			"skipped_folders":    g.SkippedFolderCount,
			"unreadable_folders": g.UnreadableFolderCount,
			"content_mismatches": g.ContentMismatches,
			"fingerprint":        g.Fingerprint(),
		}).Error
	})
}

// Run 读取本次扫描的汇总记录
func (d *Database) Run() (*ScanRun, error) {
	var run ScanRun
	if err := d.db.First(&run, "id = ?", d.runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// Gaps 读取本次扫描记录的缺失目录，按目录和类型排序
func (d *Database) Gaps() ([]FolderGap, error) {
	var gaps []FolderGap
	err := d.db.Where("run_id = ?", d.runID).Order("directory, image_type").Find(&gaps).Error
	return gaps, err
}

// MissingFiles 读取本次扫描缺少 sidecar 的文件
func (d *Database) MissingFiles() ([]MissingFile, error) {
	var files []MissingFile
	err := d.db.Where("run_id = ?", d.runID).Order("directory, name").Find(&files).Error
	return files, err
}

// Skipped 读取本次扫描被剪枝的目录
func (d *Database) Skipped() ([]SkippedFolder, error) {
	var folders []SkippedFolder
	err := d.db.Where("run_id = ?", d.runID).Order("directory").Find(&folders).Error
	return folders, err
}

// Totals 读取本次扫描的按类型合计
func (d *Database) Totals() ([]TypeTotal, error) {
	var totals []TypeTotal
	err := d.db.Where("run_id = ?", d.runID).Order("image_type").Find(&totals).Error
	return totals, err
}

func (d *Database) Close() error {
	logger.Get().Info().Msg("关闭数据库连接")
	sqlDB, err := d.db.DB()
	if err != nil {
		logger.Get().Error().Err(err).Msg("获取数据库连接失败")
		return err
	}
	return sqlDB.Close()
}

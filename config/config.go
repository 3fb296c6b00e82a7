package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/moyu-x/xmp-audit/internal"
)

type Config struct {
	Scan struct {
		SkipNames     []string `mapstructure:"skip_names"`
		SkipDepth     int      `mapstructure:"skip_depth"`
		Types         []string `mapstructure:"types"`
		SidecarExt    string   `mapstructure:"sidecar_ext"`
		VerifyContent bool     `mapstructure:"verify_content"`
	} `mapstructure:"scan"`
	Report struct {
		Database string `mapstructure:"database"`
	} `mapstructure:"report"`
	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`
}

// flagKeys 命令行参数到配置键的映射
var flagKeys = map[string]string{
	"skip":           "scan.skip_names",
	"skip-depth":     "scan.skip_depth",
	"types":          "scan.types",
	"sidecar-ext":    "scan.sidecar_ext",
	"verify-content": "scan.verify_content",
	"db":             "report.database",
	"log-level":      "logging.level",
	"log-file":       "logging.file",
}

// Load 按 默认值 < 环境变量 < 命令行参数 的优先级加载配置
// 不读取配置文件，每次运行的参数都是显式给出的
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("scan.skip_names", internal.DefaultSkipNames)
	v.SetDefault("scan.skip_depth", internal.DefaultSkipDepth)
	v.SetDefault("scan.types", internal.DefaultImageTypes)
	v.SetDefault("scan.sidecar_ext", internal.DefaultSidecarExt)
	v.SetDefault("scan.verify_content", false)
	v.SetDefault("report.database", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetEnvPrefix(internal.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

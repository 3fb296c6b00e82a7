package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xmp-audit",
	Short: "检查照片库中图片的 xmp sidecar 是否齐全",
	Long: `xmp-audit 遍历照片库目录树，检查每个图片文件旁边是否存在同名的 xmp 元数据文件。

迁移元数据（例如从 Capture One 到 Lightroom Classic）前后，
可以用它定位缺少 sidecar 的目录，并得到按图片类型的统计。`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

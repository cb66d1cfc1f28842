// 该main函数是mirrord二进制文件的运行入口
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meridianledger/mirror/internal/mirrord/node"
	"github.com/meridianledger/mirror/internal/mirrord/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 主命令描述服务 和 默认打印帮助消息。
var mainCmd = &cobra.Command{Use: "mirrord"}

// mirrord配置文件目录
var mirrorSampleConfig = "sampleconfig"

/**
 * 1. viper 是一个流行的 Go 库，用于处理配置文件和环境变量
 * 2. mainCmd 属于命令程序, 用于识别和处理启动的追加命令
 */
func main() {
	// 设置环境变量前缀, 并设置get默认自动获取这个前缀的环境变量
	viper.SetEnvPrefix("MIRROR")
	viper.AutomaticEnv()
	// 设置将 . 转换为 _ 的环境变量key转换器
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// 添加子命令, version版本、node节点
	mainCmd.AddCommand(version.Cmd())
	mainCmd.AddCommand(node.Cmd())

	// 执行主命令
	if mainCmd.Execute() != nil {
		// 失败时，会打印使用消息和错误字符串，因此我们仅需要以非 0 状态退出
		os.Exit(1)
	}
}

/**
 * 初始化
 */
func init() {
	// 检查 MIRROR_CFG_PATH 环境变量是否已设置
	cfgPath := os.Getenv("MIRROR_CFG_PATH")

	if cfgPath == "" {
		// 获取当前工作目录
		currentDir, err := os.Getwd()
		if err != nil {
			fmt.Println("无法获取当前路径:", err)
			return
		}
		// 源码目录下优先使用 sampleconfig 中的配置
		cfgPath = filepath.Join(currentDir, mirrorSampleConfig)
		if _, err := os.Stat(cfgPath); err == nil {
			os.Setenv("MIRROR_CFG_PATH", cfgPath)
		} else {
			os.Setenv("MIRROR_CFG_PATH", currentDir)
		}
	}
	fmt.Println("MIRROR_CFG_PATH: ", os.Getenv("MIRROR_CFG_PATH"))
}

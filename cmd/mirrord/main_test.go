package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
)

/**
 * 测试配置失败时的退出行为
 */
func TestMirrordCommand(t *testing.T) {
	// 创建Gomega断言对象的代码
	gt := NewGomegaWithT(t)

	// 编译mirrord的可执行文件, 编译Go程序并返回可执行文件的路径
	mirrord, err := gexec.Build("github.com/meridianledger/mirror/cmd/mirrord")
	gt.Expect(err).NotTo(HaveOccurred())
	// 清理构建工件
	defer gexec.CleanupBuildArtifacts()

	t.Run("version", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(mirrord, "version")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("mirrord:"))
		gt.Expect(sess.Out).To(gbytes.Say("Version:"))
	})

	t.Run("missing configuration", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		// 空目录中没有 mirrord.yaml, 配置加载失败应以退出码 2 结束
		tempDir, err := os.MkdirTemp("", "mirrord-noconf")
		gt.Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		cmd := exec.Command(mirrord, "node", "start")
		cmd.Env = []string{
			fmt.Sprintf("MIRROR_CFG_PATH=%s", tempDir),
		}
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(2))
		gt.Expect(sess.Err).To(gbytes.Say("解析 mirrord 配置失败"))
	})

	t.Run("incomplete configuration", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		// 缺少 Extract.Sources 的配置在补全阶段直接恐慌
		tempDir, err := os.MkdirTemp("", "mirrord-badconf")
		gt.Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		content := []byte("Pipeline:\n  MaxWindow: 4\n")
		err = os.WriteFile(filepath.Join(tempDir, "mirrord.yaml"), content, 0o644)
		gt.Expect(err).NotTo(HaveOccurred())

		cmd := exec.Command(mirrord, "node", "start")
		cmd.Env = []string{
			fmt.Sprintf("MIRROR_CFG_PATH=%s", tempDir),
		}
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(2))
		gt.Expect(sess.Err).To(gbytes.Say("Extract.Sources must contain at least one peer address"))
	})
}

package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"

	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/extract/fakepeer"
	"github.com/meridianledger/mirror/core/hooks/accountindex"
	"github.com/meridianledger/mirror/core/ledger/store/leveldbstore"
)

/**
 * 测试离线工具对一个预置 leveldb 存储的各个子命令
 */
func TestLedgerutilCommand(t *testing.T) {
	// 创建Gomega断言对象的代码
	gt := NewGomegaWithT(t)

	// 编译ledgerutil的可执行文件, 编译Go程序并返回可执行文件的路径
	ledgerutil, err := gexec.Build("github.com/meridianledger/mirror/cmd/ledgerutil")
	gt.Expect(err).NotTo(HaveOccurred())
	// 清理构建工件
	defer gexec.CleanupBuildArtifacts()

	// 预置一个含账本 7-9 的存储, 锚点提交从 7 开始
	dbDir, err := os.MkdirTemp("", "ledgerutil-store")
	gt.Expect(err).NotTo(HaveOccurred())
	defer os.RemoveAll(dbDir)

	ctx := context.Background()
	seed, err := leveldbstore.Open(dbDir)
	gt.Expect(err).NotTo(HaveOccurred())
	for seq := uint64(7); seq <= 9; seq++ {
		_, err = seed.Commit(ctx, seq, fakepeer.BuildLedger(util.SM3, seq, 2), seq == 7)
		gt.Expect(err).NotTo(HaveOccurred())
	}
	seed.Close()

	t.Run("version", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "version")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("ledgerutil:"))
		gt.Expect(sess.Out).To(gbytes.Say("Version:"))
	})

	t.Run("watermark", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "watermark", "--leveldb", dbDir)
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say(`最早可用账本:\s+7`))
		gt.Expect(sess.Out).To(gbytes.Say(`已提交水位:\s+9`))
		gt.Expect(sess.Out).To(gbytes.Say(`连续账本数:\s+3`))
	})

	t.Run("watermark empty store", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		emptyDir, err := os.MkdirTemp("", "ledgerutil-empty")
		gt.Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(emptyDir)

		cmd := exec.Command(ledgerutil, "watermark", "--leveldb", emptyDir)
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("存储为空"))
	})

	t.Run("verify", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "verify", "--leveldb", dbDir)
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("校验通过: 账本 7-9 共 3 个"))
	})

	t.Run("verify with wrong hash family", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		// 存储按 sm3 预置, 用 sha256 重算必然全部不匹配
		cmd := exec.Command(ledgerutil, "verify", "--leveldb", dbDir, "--hash-family", "sha256")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Out).To(gbytes.Say("交易集摘要不匹配"))
		gt.Expect(sess.Err).To(gbytes.Say("校验失败"))
	})

	t.Run("decode", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "decode", "--leveldb", dbDir, "--seq", "8")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say(`"sequence": "8"`))
		gt.Expect(sess.Out).To(gbytes.Say(`"transactions"`))
	})

	t.Run("decode missing ledger", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "decode", "--leveldb", dbDir, "--seq", "42")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Err).To(gbytes.Say("账本 42 不存在"))
	})

	t.Run("state", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "state", "--leveldb", dbDir, "--key", "acct-0008")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("balance-8"))
	})

	t.Run("state missing key", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "state", "--leveldb", dbDir, "--key", "acct-9999")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Err).To(gbytes.Say("不存在"))
	})

	t.Run("backup", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		destRoot, err := os.MkdirTemp("", "ledgerutil-backup")
		gt.Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(destRoot)
		destDir := filepath.Join(destRoot, "copy")

		cmd := exec.Command(ledgerutil, "backup", "--source", dbDir, "--dest", destDir)
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("已备份"))

		// 备份出来的目录是一个可打开的完整存储
		cmd = exec.Command(ledgerutil, "watermark", "--leveldb", destDir)
		sess, err = gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say(`已提交水位:\s+9`))
	})

	t.Run("backup refuses an open store", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		// 本进程持有文件锁, 子进程的备份必须失败
		open, err := leveldbstore.Open(dbDir)
		gt.Expect(err).NotTo(HaveOccurred())
		defer open.Close()

		destRoot, err := os.MkdirTemp("", "ledgerutil-locked")
		gt.Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(destRoot)

		cmd := exec.Command(ledgerutil, "backup", "--source", dbDir, "--dest", filepath.Join(destRoot, "copy"))
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Err).To(gbytes.Say("存储正在被其他进程使用"))
	})

	t.Run("rebuild-index", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "rebuild-index", "--leveldb", dbDir)
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("账户索引已重建: 账本 7-9 共 3 个"))

		// 重建出的索引把每个账户指到最后触及它的账本
		s, err := leveldbstore.Open(dbDir)
		gt.Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		idx := accountindex.New(s.IndexProvider())
		seq, ok, err := idx.LastTouched([]byte("acct-0009"))
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Expect(ok).To(BeTrue())
		gt.Expect(seq).To(Equal(uint64(9)))
	})

	t.Run("init-schema print", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "init-schema", "--print")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say("CREATE TABLE IF NOT EXISTS ledgers"))
	})

	t.Run("store flags are mutually exclusive", func(t *testing.T) {
		gt := NewGomegaWithT(t)

		cmd := exec.Command(ledgerutil, "watermark", "--leveldb", dbDir, "--postgres", "postgres://localhost/mirror")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Err).To(gbytes.Say("只能提供一个"))
	})
}

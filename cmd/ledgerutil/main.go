/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/protobuf/jsonpb"
	"github.com/meridianledger/mirror/common/ledger/util/leveldbhelper"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/hooks/accountindex"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/core/ledger/store/leveldbstore"
	"github.com/meridianledger/mirror/core/ledger/store/pgstore"
	"github.com/meridianledger/mirror/internal/ledgerutil/metadata"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

// command line flags
var (
	app = kingpin.New("ledgerutil", "Utility for inspecting and maintaining mirror ledger stores. 镜像账本存储的离线检查与维护工具, 只能作用于已关闭的存储")

	watermark        = app.Command("watermark", "打印存储的最早可用账本与已提交水位")
	watermarkLeveldb = watermark.Flag("leveldb", "leveldb 存储目录").String()
	watermarkPg      = watermark.Flag("postgres", "postgres 连接串").String()

	verify        = app.Command("verify", "重算交易集摘要并检查水位以内的连续性")
	verifyLeveldb = verify.Flag("leveldb", "leveldb 存储目录").String()
	verifyPg      = verify.Flag("postgres", "postgres 连接串").String()
	verifyFamily  = verify.Flag("hash-family", "摘要算法族: sm3 | sha256 | sha3_256").Default("sm3").String()
	verifyFrom    = verify.Flag("from", "起始序列号, 0 表示从最早可用账本开始").Uint64()
	verifyTo      = verify.Flag("to", "结束序列号, 0 表示校验到已提交水位").Uint64()

	decode        = app.Command("decode", "以 JSON 打印一个已存储的账本")
	decodeLeveldb = decode.Flag("leveldb", "leveldb 存储目录").String()
	decodePg      = decode.Flag("postgres", "postgres 连接串").String()
	decodeSeq     = decode.Flag("seq", "账本序列号").Required().Uint64()

	state        = app.Command("state", "打印一个状态对象的当前负载")
	stateLeveldb = state.Flag("leveldb", "leveldb 存储目录").String()
	statePg      = state.Flag("postgres", "postgres 连接串").String()
	stateKey     = state.Flag("key", "状态对象键").Required().String()

	initSchema      = app.Command("init-schema", "在 postgres 上创建镜像模式")
	initSchemaPg    = initSchema.Flag("postgres", "postgres 连接串").String()
	initSchemaPrint = initSchema.Flag("print", "仅打印 DDL, 不连接数据库").Bool()

	backup       = app.Command("backup", "复制一个已关闭的 leveldb 存储目录")
	backupSource = backup.Flag("source", "要备份的 leveldb 存储目录").Required().String()
	backupDest   = backup.Flag("dest", "备份目标目录").Required().String()

	rebuildIndex        = app.Command("rebuild-index", "丢弃并从已存储的账本重建账户索引")
	rebuildIndexLeveldb = rebuildIndex.Flag("leveldb", "leveldb 存储目录").Required().String()

	version = app.Command("version", "Show version information")
)

func main() {
	kingpin.Version("0.0.1")

	var err error
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {

	// "watermark" 命令
	case watermark.FullCommand():
		err = showWatermark()
	// "verify" 命令
	case verify.FullCommand():
		err = verifyLedgers()
	// "decode" 命令
	case decode.FullCommand():
		err = decodeLedger()
	// "state" 命令
	case state.FullCommand():
		err = showStateObject()
	// "init-schema" 命令
	case initSchema.FullCommand():
		err = initPostgresSchema()
	// "backup" 命令
	case backup.FullCommand():
		err = backupStore()
	// "rebuild-index" 命令
	case rebuildIndex.FullCommand():
		err = rebuildAccountIndex()
	// "version" 命令
	case version.FullCommand():
		printVersion()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %s\n", err)
		os.Exit(1)
	}
}

// mirrorStore 是两个后端共有的访问面
type mirrorStore interface {
	store.Store
	FirstLedgerSequence(ctx context.Context) (uint64, error)
	StateObject(ctx context.Context, key []byte) ([]byte, error)
}

// openStore 按标志打开存储后端, 两个标志只能提供一个。
// leveldb 后端打开时会获取文件锁, 正在运行的 mirrord 会使打开失败。
func openStore(ctx context.Context, leveldbPath, pgConn string) (mirrorStore, error) {
	switch {
	case leveldbPath != "" && pgConn != "":
		return nil, errors.New("--leveldb 与 --postgres 只能提供一个")
	case leveldbPath != "":
		return leveldbstore.Open(leveldbPath)
	case pgConn != "":
		return pgstore.Open(ctx, pgConn)
	default:
		return nil, errors.New("必须提供 --leveldb 或 --postgres")
	}
}

// showWatermark 打印存储的边界序列号
func showWatermark() error {
	ctx := context.Background()
	s, err := openStore(ctx, *watermarkLeveldb, *watermarkPg)
	if err != nil {
		return err
	}
	defer s.Close()

	last, err := s.LastCommittedSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取已提交水位")
	}
	if last == 0 {
		fmt.Println("存储为空")
		return nil
	}
	first, err := s.FirstLedgerSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取最早可用账本")
	}
	fmt.Printf("最早可用账本: %d\n", first)
	fmt.Printf("已提交水位:   %d\n", last)
	fmt.Printf("连续账本数:   %d\n", last-first+1)
	return nil
}

// verifyLedgers 重算范围内每个账本的交易集摘要, 并检查水位以内
// 没有空洞。发现不一致继续向后扫描, 最终以非零退出。
func verifyLedgers() error {
	ctx := context.Background()
	s, err := openStore(ctx, *verifyLeveldb, *verifyPg)
	if err != nil {
		return err
	}
	defer s.Close()

	last, err := s.LastCommittedSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取已提交水位")
	}
	if last == 0 {
		fmt.Println("存储为空, 无可校验账本")
		return nil
	}
	first, err := s.FirstLedgerSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取最早可用账本")
	}

	from := *verifyFrom
	if from < first {
		from = first
	}
	to := *verifyTo
	if to == 0 || to > last {
		to = last
	}
	if from > to {
		return errors.Errorf("起始序列号 %d 大于结束序列号 %d", from, to)
	}

	family := util.HashFamily(*verifyFamily)
	var bad int
	for seq := from; seq <= to; seq++ {
		data, err := s.Ledger(ctx, seq)
		if errors.Is(err, store.ErrNotFound) {
			bad++
			fmt.Printf("账本 %d: 缺失, 水位以内出现空洞\n", seq)
			continue
		}
		if err != nil {
			return errors.WithMessagef(err, "读取账本 %d", seq)
		}
		if err := protoutil.VerifyTxSet(family, data); err != nil {
			bad++
			fmt.Printf("账本 %d: %s\n", seq, err)
		}
	}
	if bad > 0 {
		return errors.Errorf("校验失败: 范围 %d-%d 内发现 %d 处不一致", from, to, bad)
	}
	fmt.Printf("校验通过: 账本 %d-%d 共 %d 个\n", from, to, to-from+1)
	return nil
}

// decodeLedger 按序列号读取一个账本并以 JSON 输出到标准输出
func decodeLedger() error {
	ctx := context.Background()
	s, err := openStore(ctx, *decodeLeveldb, *decodePg)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.Ledger(ctx, *decodeSeq)
	if errors.Is(err, store.ErrNotFound) {
		return errors.Errorf("账本 %d 不存在", *decodeSeq)
	}
	if err != nil {
		return errors.WithMessagef(err, "读取账本 %d", *decodeSeq)
	}

	m := &jsonpb.Marshaler{Indent: "\t", EmitDefaults: true}
	if err := m.Marshal(os.Stdout, data); err != nil {
		return errors.WithMessage(err, "编码 JSON")
	}
	fmt.Println()
	return nil
}

// showStateObject 按键读取状态对象的当前负载并原样写到标准输出,
// 负载是不透明字节, 可以直接重定向到文件。
func showStateObject() error {
	ctx := context.Background()
	s, err := openStore(ctx, *stateLeveldb, *statePg)
	if err != nil {
		return err
	}
	defer s.Close()

	payload, err := s.StateObject(ctx, []byte(*stateKey))
	if err != nil {
		return errors.WithMessagef(err, "读取状态对象 %q", *stateKey)
	}
	if payload == nil {
		return errors.Errorf("状态对象 %q 不存在", *stateKey)
	}
	if _, err := os.Stdout.Write(payload); err != nil {
		return errors.WithMessage(err, "写出负载")
	}
	return nil
}

// initPostgresSchema 在目标数据库上应用镜像模式。Open 在启动时
// 应用 DDL, 因此连接成功即模式就绪。
func initPostgresSchema() error {
	if *initSchemaPrint {
		fmt.Print(pgstore.CreateSchemaSQL)
		return nil
	}
	if *initSchemaPg == "" {
		return errors.New("必须提供 --postgres 连接串, 或使用 --print 输出 DDL")
	}
	s, err := pgstore.Open(context.Background(), *initSchemaPg)
	if err != nil {
		return errors.WithMessage(err, "初始化 postgres 模式")
	}
	s.Close()
	fmt.Println("postgres 模式已就绪")
	return nil
}

// backupStore 持有存储的文件锁并复制整个目录。锁保证备份期间
// 没有 mirrord 在写入同一目录。
func backupStore() error {
	lock := leveldbhelper.NewFileLock(filepath.Join(*backupSource, "fileLock"))
	if err := lock.Lock(); err != nil {
		return errors.WithMessage(err, "存储正在被其他进程使用, 备份要求存储处于关闭状态")
	}
	defer lock.Unlock()

	if err := copy.Copy(*backupSource, *backupDest); err != nil {
		return errors.WithMessagef(err, "复制 %s 到 %s", *backupSource, *backupDest)
	}
	fmt.Printf("已备份 %s 到 %s\n", *backupSource, *backupDest)
	return nil
}

// rebuildAccountIndex 丢弃派生的账户索引并从账本记录重放状态增量。
// 索引与主数据在同一个物理 leveldb 的不同逻辑数据库里, 重建不触碰
// 账本与状态本身。
func rebuildAccountIndex() error {
	ctx := context.Background()
	s, err := leveldbstore.Open(*rebuildIndexLeveldb)
	if err != nil {
		return err
	}
	defer s.Close()

	last, err := s.LastCommittedSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取已提交水位")
	}
	if last == 0 {
		fmt.Println("存储为空, 没有可重建的索引")
		return nil
	}
	first, err := s.FirstLedgerSequence(ctx)
	if err != nil {
		return errors.WithMessage(err, "读取最早可用账本")
	}

	if err := accountindex.Drop(s.IndexProvider()); err != nil {
		return errors.WithMessage(err, "丢弃现有账户索引")
	}
	idx := accountindex.New(s.IndexProvider())
	for seq := first; seq <= last; seq++ {
		data, err := s.Ledger(ctx, seq)
		if err != nil {
			return errors.WithMessagef(err, "读取账本 %d", seq)
		}
		if err := idx.OnCommit(data); err != nil {
			return errors.WithMessagef(err, "应用账本 %d 的状态增量", seq)
		}
	}
	fmt.Printf("账户索引已重建: 账本 %d-%d 共 %d 个\n", first, last, last-first+1)
	return nil
}

// 打印版本
func printVersion() {
	fmt.Println(metadata.GetVersionInfo())
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperledger/fabric-lib-go/healthz"
	"github.com/meridianledger/mirror/common/amendments"
	"github.com/meridianledger/mirror/common/crypto"
	"github.com/meridianledger/mirror/common/fabhttp"
	"github.com/meridianledger/mirror/common/flogging"
	floggingmetrics "github.com/meridianledger/mirror/common/flogging/metrics"
	"github.com/meridianledger/mirror/common/ledger/util/leveldbhelper"
	"github.com/meridianledger/mirror/common/metadata"
	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/extract"
	"github.com/meridianledger/mirror/core/hooks"
	"github.com/meridianledger/mirror/core/hooks/accountindex"
	"github.com/meridianledger/mirror/core/hooks/featuretally"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/core/ledger/store/leveldbstore"
	"github.com/meridianledger/mirror/core/ledger/store/pgstore"
	"github.com/meridianledger/mirror/core/operations"
	"github.com/meridianledger/mirror/core/pipeline"
	"github.com/meridianledger/mirror/core/publish"
	"github.com/meridianledger/mirror/core/publish/kafka"
	"github.com/meridianledger/mirror/internal/mirrord/localconfig"
	"github.com/meridianledger/mirror/internal/mirrord/version"
	"github.com/meridianledger/mirror/internal/pkg/comm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	return nodeStartCmd
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",           // 命令的使用方式
	Short: "启动镜像节点.",         // 命令的简短描述
	Long:  `启动与验证网络同步的只读镜像.`, // 命令的详细描述
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("检测到后续还有参数args")
		}
		// 解析命令行参数已完成，因此静默显示命令的使用方式
		cmd.SilenceUsage = true
		// 启动镜像节点服务
		return serve(args)
	},
}

// serve 装配并运行镜像节点: 配置 → 日志 → 运维端点 → 存储 →
// 源池 → 钩子 → 发布面 → 管道, 然后阻塞直至收到停止信号。
// 配置与引导阶段的失败以退出码 2 结束进程, 运行期的致命错误
// 由上层以退出码 1 结束。
func serve(args []string) error {
	// 读取镜像配置, mirrord.yaml
	conf, err := localconfig.Load()
	if err != nil {
		logger.Error("解析 mirrord 配置失败: ", err)
		os.Exit(2)
	}
	initializeLogging()
	logger.Infof("Starting %s", version.GetInfo())

	// 运维子系统: /metrics /healthz /logspec /version /status
	opsSystem := newOperationsSystem(conf.Operations, conf.Metrics)
	if err = opsSystem.Start(); err != nil {
		return errors.WithMessage(err, "无法启动运维子系统")
	}
	defer opsSystem.Stop()
	metricsProvider := opsSystem.Provider
	logObserver := floggingmetrics.NewObserver(metricsProvider)
	flogging.SetObserver(logObserver)

	// 账本存储, 由配置选择 leveldb 或 postgres 后端
	ledgerStore, indexProvider, err := openLedgerStore(conf.Ledger)
	if err != nil {
		logger.Error("打开账本存储失败: ", err)
		os.Exit(2)
	}
	defer ledgerStore.Close()

	// 面向源对等端的 gRPC 客户端配置
	clientConfig, err := initializeClientConfig(conf)
	if err != nil {
		logger.Error("装配源客户端配置失败: ", err)
		os.Exit(2)
	}

	// 在其中一个证书到期前一周发出警告
	expirationLogger := flogging.MustGetLogger("certmonitor")
	var operationsCert []byte
	if conf.Operations.TLS.Enabled {
		// 运维子系统已经启动, 此时证书文件必然可读
		operationsCert, _ = ioutil.ReadFile(conf.Operations.TLS.Certificate)
	}
	var kafkaCert []byte
	if conf.Publish.Kafka.Enabled && conf.Publish.Kafka.TLS.Enabled {
		kafkaCert = []byte(conf.Publish.Kafka.TLS.Certificate)
	}
	crypto.TrackExpiration(
		clientConfig.SecOpts.Certificate, // 源客户端 tls 证书
		operationsCert,                   // 运维服务 tls 证书
		kafkaCert,                        // Kafka 中继客户端 tls 证书
		expirationLogger.Infof,
		expirationLogger.Warnf, // 这可用于将来搭载度量事件
		time.Now(),
		time.AfterFunc)

	var sources []*extract.Source
	for _, address := range conf.Extract.Sources {
		source, err := extract.NewSource(address, clientConfig)
		if err != nil {
			return errors.WithMessagef(err, "无法建立到源 %s 的连接", address)
		}
		sources = append(sources, source)
	}

	extractor := &extract.Extractor{
		HashFamily:          util.HashFamily(conf.General.HashFamily),
		WalkBatchSize:       conf.Extract.WalkBatchSize,
		WalkProgressTimeout: conf.Extract.WalkProgressTimeout,
	}
	balancer := extract.NewLoadBalancer(sources, extractor, ledgerStore, extract.Options{
		AttemptTimeout: conf.Extract.AttemptTimeout,
		SourceCooldown: conf.Extract.SourceCooldown,
	})
	defer balancer.Close()

	// 提交后钩子
	hookRegistry, err := registerHooks(conf.Hooks, metricsProvider, indexProvider)
	if err != nil {
		return err
	}

	// 发布面: 进程内订阅总是开启, Kafka 中继按配置启用
	haltChan := make(chan struct{})
	feeds := []publish.Feed{publish.NewInProcessFeed(conf.Publish.InProcessBuffer)}
	var kafkaFeed *kafka.Feed
	if conf.Publish.Kafka.Enabled {
		kafkaFeed, err = kafka.New(kafka.Config{
			Brokers:   conf.Publish.Kafka.Brokers,
			Topic:     conf.Publish.Kafka.Topic,
			Version:   conf.Publish.Kafka.Version,
			TLS:       conf.Publish.Kafka.TLS,
			SASLPlain: conf.Publish.Kafka.SASLPlain,
			Retry:     conf.Publish.Kafka.Retry,
		}, haltChan)
		if err != nil {
			return errors.WithMessage(err, "无法建立 Kafka 中继")
		}
		defer kafkaFeed.Close()
		feeds = append(feeds, kafkaFeed)
	}
	publisher := publish.NewPublisher(conf.Publish.QueueSize, publish.NewMetrics(metricsProvider), feeds...)
	defer publisher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 提取-装载管道
	pl := pipeline.New(pipeline.Config{
		InitialSequence:   conf.Pipeline.InitialSequence,
		MaxConcurrency:    conf.Pipeline.MaxConcurrency,
		MaxWindow:         conf.Pipeline.MaxWindow,
		InitialRetryDelay: conf.Pipeline.InitialRetryDelay,
		MaxRetryDelay:     conf.Pipeline.MaxRetryDelay,
		MaxRetries:        conf.Pipeline.MaxRetries,
	}, pipeline.Deps{
		Pool:       balancer,
		Store:      ledgerStore,
		Amendments: amendments.NewHandler(amendments.NewRegistry(conf.Amendments.KnownFeatures...), &amendments.BlockState{}),
		Hooks:      hookRegistry,
		Publisher:  publisher,
		Metrics:    pipeline.NewMetrics(metricsProvider),
	})
	if err := pl.Start(ctx); err != nil {
		logger.Error("管道引导失败: ", err)
		os.Exit(2)
	}
	defer pl.Stop()

	// 状态面与健康检查。管道停摆后进程保持存活, /status 始终可查。
	opsSystem.RegisterStatusReporter(pl)
	if err := registerHealthCheckers(opsSystem, ledgerStore, balancer, pl, kafkaFeed); err != nil {
		return err
	}

	// 后台按周期探测全部源, 供健康评级与状态面使用
	go probeLoop(ctx, balancer, conf.Extract.ProbeInterval)

	serveDone := make(chan struct{})
	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			close(haltChan)
			close(serveDone)
		})
	}
	handleSignals(map[os.Signal]func(){
		syscall.SIGINT:  shutdown,
		syscall.SIGTERM: shutdown,
	})

	logger.Infof("镜像节点已启动, 运维端点 %s", opsSystem.Addr())
	<-serveDone
	logger.Info("收到停止信号, 镜像节点退出")
	return nil
}

// initializeLogging 从环境变量初始化日志级别与格式。
func initializeLogging() {
	loggingSpec := os.Getenv("MIRROR_LOGGING_SPEC")
	loggingFormat := os.Getenv("MIRROR_LOGGING_FORMAT")
	flogging.Init(flogging.Config{
		Format:  loggingFormat,
		Writer:  os.Stderr,
		LogSpec: loggingSpec,
	})
}

// openLedgerStore 按配置打开存储后端。leveldb 后端同时返回派生
// 索引使用的 Provider, postgres 后端不支持本地派生索引。
func openLedgerStore(conf localconfig.Ledger) (store.Store, *leveldbhelper.Provider, error) {
	switch conf.Type {
	case "leveldb":
		ldb, err := leveldbstore.Open(conf.Location)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "无法打开 leveldb 存储 %s", conf.Location)
		}
		logger.Infof("账本存储: leveldb, 目录 %s", conf.Location)
		return ldb, ldb.IndexProvider(), nil
	case "postgres":
		pg, err := pgstore.Open(context.Background(), conf.Postgres.ConnectionString)
		if err != nil {
			return nil, nil, errors.WithMessage(err, "无法连接 postgres 存储")
		}
		logger.Info("账本存储: postgres")
		return pg, nil, nil
	default:
		return nil, nil, errors.Errorf("未知的存储后端: %s", conf.Type)
	}
}

// initializeClientConfig 由 General 段装配面向源的 gRPC 客户端配置,
// 证书材料按路径读入内存。
func initializeClientConfig(conf *localconfig.TopLevel) (comm.ClientConfig, error) {
	cc := comm.ClientConfig{
		AsyncConnect: true,
		KaOpts: comm.KeepaliveOptions{
			ClientInterval: conf.General.Keepalive.ClientInterval,
			ClientTimeout:  conf.General.Keepalive.ClientTimeout,
		},
		DialTimeout:    conf.General.ConnectionTimeout,
		SecOpts:        comm.SecureOptions{},
		MaxRecvMsgSize: conf.General.MaxRecvMsgSize,
		MaxSendMsgSize: conf.General.MaxSendMsgSize,
	}
	if !conf.General.TLS.Enabled {
		return cc, nil
	}

	certBytes, err := ioutil.ReadFile(conf.General.TLS.Certificate)
	if err != nil {
		return cc, errors.WithMessagef(err, "无法读取客户端 TLS 证书 '%s'", conf.General.TLS.Certificate)
	}
	keyBytes, err := ioutil.ReadFile(conf.General.TLS.PrivateKey)
	if err != nil {
		return cc, errors.WithMessagef(err, "无法读取客户端 TLS 私钥 '%s'", conf.General.TLS.PrivateKey)
	}
	var serverRootCAs [][]byte
	for _, serverRoot := range conf.General.TLS.RootCAs {
		rootCACert, err := ioutil.ReadFile(serverRoot)
		if err != nil {
			return cc, errors.WithMessagef(err, "无法读取根 CA 证书 '%s'", serverRoot)
		}
		serverRootCAs = append(serverRootCAs, rootCACert)
	}

	cc.SecOpts = comm.SecureOptions{
		UseTLS:        true,
		CipherSuites:  comm.DefaultTLSCipherSuites,
		ServerRootCAs: serverRootCAs,
		Certificate:   certBytes,
		Key:           keyBytes,
	}
	return cc, nil
}

// registerHooks 按配置注册提交后钩子。账户索引依赖 leveldb 的
// 派生索引库, postgres 后端下跳过并告警。
func registerHooks(conf localconfig.Hooks, metricsProvider metrics.Provider, indexProvider *leveldbhelper.Provider) (*hooks.Registry, error) {
	hookRegistry := hooks.NewRegistry(hooks.NewMetrics(metricsProvider))
	if conf.AccountIndex.Enabled {
		if indexProvider != nil {
			if err := hookRegistry.Register(accountindex.New(indexProvider)); err != nil {
				return nil, err
			}
		} else {
			logger.Warn("账户索引钩子仅支持 leveldb 后端, 已跳过")
		}
	}
	if conf.FeatureTally.Enabled {
		if err := hookRegistry.Register(featuretally.New(metricsProvider)); err != nil {
			return nil, err
		}
	}
	logger.Infof("已启用的提交后钩子: %v", hookRegistry.Names())
	return hookRegistry, nil
}

func registerHealthCheckers(opsSystem *operations.System, ledgerStore store.Store, balancer *extract.LoadBalancer, pl *pipeline.Pipeline, kafkaFeed *kafka.Feed) error {
	// leveldb 与 postgres 后端都实现了 HealthCheck
	if checkable, ok := ledgerStore.(healthz.HealthChecker); ok {
		if err := opsSystem.RegisterChecker("store", checkable); err != nil {
			return errors.WithMessage(err, "无法注册存储健康检查")
		}
	}
	if err := opsSystem.RegisterChecker("sources", balancer); err != nil {
		return errors.WithMessage(err, "无法注册源池健康检查")
	}
	if err := opsSystem.RegisterChecker("pipeline", pl); err != nil {
		return errors.WithMessage(err, "无法注册管道健康检查")
	}
	if kafkaFeed != nil {
		if err := opsSystem.RegisterChecker("kafka", kafkaFeed); err != nil {
			return errors.WithMessage(err, "无法注册 Kafka 中继健康检查")
		}
	}
	return nil
}

// probeLoop 按固定周期刷新全部源的健康评级, ctx 取消时退出。
func probeLoop(ctx context.Context, balancer *extract.LoadBalancer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balancer.ProbeAll(ctx)
		}
	}
}

func newOperationsSystem(ops localconfig.Operations, metrics localconfig.Metrics) *operations.System {
	return operations.NewSystem(operations.Options{
		Options: fabhttp.Options{
			Logger:        flogging.MustGetLogger("mirrord.operations"),
			ListenAddress: ops.ListenAddress,
			TLS: fabhttp.TLS{
				Enabled:            ops.TLS.Enabled,
				CertFile:           ops.TLS.Certificate,
				KeyFile:            ops.TLS.PrivateKey,
				ClientCertRequired: ops.TLS.ClientAuthRequired,
				ClientCACertFiles:  ops.TLS.ClientRootCAs,
			},
		},
		Metrics: operations.MetricsOptions{
			Provider: metrics.Provider,
			Statsd: &operations.Statsd{
				Network:       metrics.Statsd.Network,
				Address:       metrics.Statsd.Address,
				WriteInterval: metrics.Statsd.WriteInterval,
				Prefix:        metrics.Statsd.Prefix,
			},
		},
		LogRequests: ops.LogRequests,
		Version:     metadata.Version,
	})
}

func handleSignals(handlers map[os.Signal]func()) {
	var signals []os.Signal
	for sig := range handlers {
		signals = append(signals, sig)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, signals...)

	go func() {
		for sig := range signalChan {
			logger.Infof("Received signal: %d (%s)", sig, sig)
			handlers[sig]()
		}
	}()
}

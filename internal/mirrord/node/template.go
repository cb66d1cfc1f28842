/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"fmt"
	"time"

	"github.com/meridianledger/mirror/core/publish/kafka"
	"github.com/meridianledger/mirror/internal/mirrord/localconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func templateCmd() *cobra.Command {
	return nodeTemplateCmd
}

var nodeTemplateCmd = &cobra.Command{
	Use:   "template",                    // 命令的使用方式
	Short: "输出默认配置模板.",                   // 命令的简短描述
	Long:  `以 YAML 形式输出带内置默认值的 mirrord 配置.`, // 命令的详细描述
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("检测到后续还有参数args")
		}
		// 解析命令行参数已完成，因此静默显示命令的使用方式
		cmd.SilenceUsage = true
		return template(args)
	},
}

// dur 让时长在模板中以 "10s" 这样的可读形式出现,
// 直接序列化 time.Duration 会得到纳秒整数。
type dur time.Duration

func (d dur) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type generalTemplate struct {
	HashFamily        string
	ConnectionTimeout dur
	Keepalive         keepaliveTemplate
	TLS               localconfig.TLS
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
}

type keepaliveTemplate struct {
	ClientInterval dur
	ClientTimeout  dur
}

type extractTemplate struct {
	Sources             []string
	AttemptTimeout      dur
	SourceCooldown      dur
	ProbeInterval       dur
	WalkBatchSize       uint32
	WalkProgressTimeout dur
}

type pipelineTemplate struct {
	InitialSequence   uint64
	MaxConcurrency    int
	MaxWindow         uint64
	InitialRetryDelay dur
	MaxRetryDelay     dur
	MaxRetries        int
}

type retryTemplate struct {
	ShortInterval        dur
	ShortTotal           dur
	LongInterval         dur
	LongTotal            dur
	ProducerRetryBackoff dur
	ProducerRetryMax     int
	DialTimeout          dur
	ReadTimeout          dur
	WriteTimeout         dur
}

type kafkaTemplate struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Version   string
	TLS       kafka.TLS
	SASLPlain kafka.SASLPlain
	Retry     retryTemplate
}

type publishTemplate struct {
	QueueSize       int
	InProcessBuffer int
	Kafka           kafkaTemplate
}

type statsdTemplate struct {
	Network       string
	Address       string
	WriteInterval dur
	Prefix        string
}

type metricsTemplate struct {
	Provider string
	Statsd   statsdTemplate
}

type topLevelTemplate struct {
	General    generalTemplate
	Extract    extractTemplate
	Pipeline   pipelineTemplate
	Ledger     localconfig.Ledger
	Publish    publishTemplate
	Hooks      localconfig.Hooks
	Operations localconfig.Operations
	Metrics    metricsTemplate
	Amendments localconfig.Amendments
}

// template 把内置默认值渲染成可直接落盘的 mirrord.yaml。
func template(args []string) error {
	defaults := localconfig.Defaults
	out := topLevelTemplate{
		General: generalTemplate{
			HashFamily:        defaults.General.HashFamily,
			ConnectionTimeout: dur(defaults.General.ConnectionTimeout),
			Keepalive: keepaliveTemplate{
				ClientInterval: dur(defaults.General.Keepalive.ClientInterval),
				ClientTimeout:  dur(defaults.General.Keepalive.ClientTimeout),
			},
			TLS:            defaults.General.TLS,
			MaxRecvMsgSize: defaults.General.MaxRecvMsgSize,
			MaxSendMsgSize: defaults.General.MaxSendMsgSize,
		},
		Extract: extractTemplate{
			Sources:             []string{"127.0.0.1:7051"},
			AttemptTimeout:      dur(defaults.Extract.AttemptTimeout),
			SourceCooldown:      dur(defaults.Extract.SourceCooldown),
			ProbeInterval:       dur(defaults.Extract.ProbeInterval),
			WalkBatchSize:       defaults.Extract.WalkBatchSize,
			WalkProgressTimeout: dur(defaults.Extract.WalkProgressTimeout),
		},
		Pipeline: pipelineTemplate{
			InitialSequence:   defaults.Pipeline.InitialSequence,
			MaxConcurrency:    defaults.Pipeline.MaxConcurrency,
			MaxWindow:         defaults.Pipeline.MaxWindow,
			InitialRetryDelay: dur(defaults.Pipeline.InitialRetryDelay),
			MaxRetryDelay:     dur(defaults.Pipeline.MaxRetryDelay),
			MaxRetries:        defaults.Pipeline.MaxRetries,
		},
		Ledger: defaults.Ledger,
		Publish: publishTemplate{
			QueueSize:       defaults.Publish.QueueSize,
			InProcessBuffer: defaults.Publish.InProcessBuffer,
			Kafka: kafkaTemplate{
				Enabled:   defaults.Publish.Kafka.Enabled,
				Brokers:   []string{"127.0.0.1:9092"},
				Topic:     "mirror-ledgers",
				Version:   defaults.Publish.Kafka.Version.String(),
				TLS:       defaults.Publish.Kafka.TLS,
				SASLPlain: defaults.Publish.Kafka.SASLPlain,
				Retry: retryTemplate{
					ShortInterval:        dur(defaults.Publish.Kafka.Retry.ShortInterval),
					ShortTotal:           dur(defaults.Publish.Kafka.Retry.ShortTotal),
					LongInterval:         dur(defaults.Publish.Kafka.Retry.LongInterval),
					LongTotal:            dur(defaults.Publish.Kafka.Retry.LongTotal),
					ProducerRetryBackoff: dur(defaults.Publish.Kafka.Retry.ProducerRetryBackoff),
					ProducerRetryMax:     defaults.Publish.Kafka.Retry.ProducerRetryMax,
					DialTimeout:          dur(defaults.Publish.Kafka.Retry.DialTimeout),
					ReadTimeout:          dur(defaults.Publish.Kafka.Retry.ReadTimeout),
					WriteTimeout:         dur(defaults.Publish.Kafka.Retry.WriteTimeout),
				},
			},
		},
		Hooks:      defaults.Hooks,
		Operations: defaults.Operations,
		Metrics: metricsTemplate{
			Provider: defaults.Metrics.Provider,
			Statsd: statsdTemplate{
				Network:       defaults.Metrics.Statsd.Network,
				Address:       defaults.Metrics.Statsd.Address,
				WriteInterval: dur(defaults.Metrics.Statsd.WriteInterval),
				Prefix:        defaults.Metrics.Statsd.Prefix,
			},
		},
		Amendments: defaults.Amendments,
	}

	rendered, err := yaml.Marshal(out)
	if err != nil {
		return errors.WithMessage(err, "无法渲染配置模板")
	}
	fmt.Printf("# mirrord 配置模板, 由内置默认值生成\n%s", rendered)
	return nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kafka

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/meridianledger/mirror/common/crypto/tlsgen"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testLedger(seq uint64) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header: &mirrorpb.LedgerHeader{Sequence: seq},
		Transactions: []*mirrorpb.Transaction{
			{Id: []byte("tx-1"), Payload: []byte("payload"), Result: 0},
		},
	}
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(Config{Brokers: []string{"127.0.0.1:9092"}}, make(chan struct{}))
	require.EqualError(t, err, "kafka 中继需要配置主题")
}

func TestNewBrokerConfig(t *testing.T) {
	cfg := Config{
		Brokers: []string{"127.0.0.1:9092"},
		Topic:   "mirror-ledgers",
		Version: sarama.V2_0_0_0,
		SASLPlain: SASLPlain{
			Enabled:  true,
			User:     "mirror",
			Password: "secret",
		},
		Retry: Retry{
			ProducerRetryMax:     7,
			ProducerRetryBackoff: 250 * time.Millisecond,
			DialTimeout:          3 * time.Second,
			ReadTimeout:          4 * time.Second,
			WriteTimeout:         5 * time.Second,
		},
	}

	brokerConfig := newBrokerConfig(cfg)

	require.Equal(t, sarama.WaitForAll, brokerConfig.Producer.RequiredAcks)
	require.True(t, brokerConfig.Producer.Return.Successes)
	require.Equal(t, 7, brokerConfig.Producer.Retry.Max)
	require.Equal(t, 250*time.Millisecond, brokerConfig.Producer.Retry.Backoff)
	require.Equal(t, 3*time.Second, brokerConfig.Net.DialTimeout)
	require.Equal(t, 4*time.Second, brokerConfig.Net.ReadTimeout)
	require.Equal(t, 5*time.Second, brokerConfig.Net.WriteTimeout)
	require.Equal(t, sarama.V2_0_0_0, brokerConfig.Version)
	require.False(t, brokerConfig.Net.TLS.Enable)
	require.True(t, brokerConfig.Net.SASL.Enable)
	require.Equal(t, "mirror", brokerConfig.Net.SASL.User)
	require.Equal(t, "secret", brokerConfig.Net.SASL.Password)
}

func TestNewBrokerConfigTLS(t *testing.T) {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	pair, err := ca.NewClientCertKeyPair()
	require.NoError(t, err)

	cfg := Config{
		Topic:   "mirror-ledgers",
		Version: sarama.V2_0_0_0,
		TLS: TLS{
			Enabled:     true,
			PrivateKey:  string(pair.Key),
			Certificate: string(pair.Cert),
			RootCAs:     []string{string(ca.CertBytes())},
		},
	}

	brokerConfig := newBrokerConfig(cfg)

	require.True(t, brokerConfig.Net.TLS.Enable)
	require.NotNil(t, brokerConfig.Net.TLS.Config)
	require.Len(t, brokerConfig.Net.TLS.Config.Certificates, 1)
	require.NotNil(t, brokerConfig.Net.TLS.Config.RootCAs)
	require.Equal(t, uint16(tls.VersionTLS12), brokerConfig.Net.TLS.Config.MinVersion)
}

func TestNewBrokerConfigBadTLSMaterialPanics(t *testing.T) {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	pair, err := ca.NewClientCertKeyPair()
	require.NoError(t, err)

	// 无法配对的公私钥
	require.Panics(t, func() {
		newBrokerConfig(Config{
			Topic: "mirror-ledgers",
			TLS: TLS{
				Enabled:     true,
				PrivateKey:  "不是私钥",
				Certificate: "不是证书",
			},
		})
	})

	// 无法解析的根证书
	require.Panics(t, func() {
		newBrokerConfig(Config{
			Topic: "mirror-ledgers",
			TLS: TLS{
				Enabled:     true,
				PrivateKey:  string(pair.Key),
				Certificate: string(pair.Cert),
				RootCAs:     []string{"不是根证书"},
			},
		})
	})
}

func TestFeedNotifySendsOneMessagePerLedger(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "mirror-ledgers" {
			return errors.Errorf("意外的主题: %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "7" {
			return errors.Errorf("意外的消息键: %s", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		decoded, err := protoutil.UnmarshalLedgerData(value)
		if err != nil {
			return err
		}
		if decoded.GetHeader().GetSequence() != 7 {
			return errors.Errorf("意外的账本序号: %d", decoded.GetHeader().GetSequence())
		}
		return nil
	})

	feed := &Feed{producer: producer, topic: "mirror-ledgers"}
	feed.Notify(testLedger(7))
	require.NoError(t, feed.Close())
}

func TestFeedNotifySurvivesSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker 不可达"))

	feed := &Feed{producer: producer, topic: "mirror-ledgers"}
	// 发送失败只记录日志, 不向调用方扩散
	require.NotPanics(t, func() { feed.Notify(testLedger(8)) })
	require.NoError(t, feed.Close())
}

func TestFeedHealthCheck(t *testing.T) {
	empty := &Feed{}
	require.Error(t, empty.HealthCheck(nil))

	feed := &Feed{producer: mocks.NewSyncProducer(t, nil), topic: "mirror-ledgers"}
	require.NoError(t, feed.HealthCheck(nil))
	require.NoError(t, feed.Close())
}

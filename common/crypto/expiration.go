/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"time"
)

// ExpiresAt 返回 PEM 编码证书的过期时间, 无法解析时返回零值。
func ExpiresAt(pemBytes []byte) time.Time {
	bl, _ := pem.Decode(pemBytes)
	if bl == nil {
		return time.Time{}
	}
	cert, err := x509.ParseCertificate(bl.Bytes)
	if err != nil {
		return time.Time{}
	}
	return cert.NotAfter
}

// MessageFunc 接收格式化消息, 日志器的 Warnf/Infof 都能充当。
type MessageFunc func(format string, args ...interface{})

// Scheduler 在 d 之后调用 f, 生产代码里就是 time.AfterFunc。
type Scheduler func(d time.Duration, f func()) *time.Timer

// TrackExpiration 在证书过期前一周发出警告。空的证书参数会被跳过,
// 对应未启用 TLS 的连接面。
func TrackExpiration(sourceClientCert, operationsCert, kafkaClientCert []byte, info MessageFunc, warn MessageFunc, now time.Time, s Scheduler) {
	trackCertExpiration(sourceClientCert, "源客户端 tls 证书: ", info, warn, now, s)
	trackCertExpiration(operationsCert, "运维服务 tls 证书: ", info, warn, now, s)
	trackCertExpiration(kafkaClientCert, "Kafka 客户端 tls 证书: ", info, warn, now, s)
}

const oneWeek = time.Hour * 24 * 7

func trackCertExpiration(rawCert []byte, certRole string, info MessageFunc, warn MessageFunc, now time.Time, sched Scheduler) {
	expirationTime := ExpiresAt(rawCert)
	if expirationTime.IsZero() {
		// 拿不到过期时间就没什么可跟踪的
		return
	}

	timeLeft := expirationTime.Sub(now)
	if timeLeft < 0 {
		warn("%s 角色证书已过期", certRole)
		return
	}

	info("%s 角色证书将在 %s 过期", certRole, expirationTime)

	if timeLeft < oneWeek {
		days := timeLeft / (time.Hour * 24)
		hours := (timeLeft - days*time.Hour*24) / time.Hour
		warn("%s 角色证书将在 %d 天 %d 小时内过期", certRole, days, hours)
		return
	}

	// 正好在过期前一周触发
	sched(timeLeft-oneWeek, func() {
		warn("%s 角色证书将在一周内过期", certRole)
	})
}

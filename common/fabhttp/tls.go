/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fabhttp

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/meridianledger/mirror/internal/pkg/comm"
	"github.com/pkg/errors"
)

// TLS 描述运维 HTTP 服务的 TLS 配置。
type TLS struct {
	Enabled            bool
	CertFile           string
	KeyFile            string
	ClientCertRequired bool
	ClientCACertFiles  []string
}

// Config 构建 *tls.Config, TLS 未启用时返回 nil 配置。
// 配置了客户端 CA 时按 ClientCertRequired 决定是否强制客户端证书。
func (t TLS) Config() (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, err
	}

	caCertPool := x509.NewCertPool()
	for _, caPath := range t.ClientCACertFiles {
		caPem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		if !caCertPool.AppendCertsFromPEM(caPem) {
			return nil, errors.Errorf("无法解析客户端 CA 证书 %s", caPath)
		}
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		CipherSuites: comm.DefaultTLSCipherSuites,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}
	if t.ClientCertRequired {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return tlsConfig, nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"google.golang.org/grpc/credentials"
)

var (
	ErrClientHandshakeNotImplemented = errors.New("comm: serverCreds 不支持客户端握手")
	ErrServerHandshakeNotImplemented = errors.New("comm: 客户端凭据不支持服务端握手")
	ErrOverrideHostnameNotSupported  = errors.New("comm: 不支持 OverrideServerName")

	// alpnProtoStr 是gRPC指定的应用层协议。
	alpnProtoStr = []string{"h2"}

	tlsLogger = flogging.MustGetLogger("comm.tls")
)

// NewServerTransportCredentials 用给定的 TLS 配置创建服务端传输凭据,
// 记录每次失败的握手。应用层协议与最低 TLS 版本被强制为 gRPC 要求的值。
func NewServerTransportCredentials(config *tls.Config, logger *flogging.FabricLogger) credentials.TransportCredentials {
	config.NextProtos = alpnProtoStr
	config.MinVersion = tls.VersionTLS12

	if logger == nil {
		logger = tlsLogger
	}
	return &serverCreds{
		config: config,
		logger: logger,
	}
}

// serverCreds 是 grpc/credentials.TransportCredentials 的服务端实现。
type serverCreds struct {
	config *tls.Config
	logger *flogging.FabricLogger
}

func (sc *serverCreds) ClientHandshake(context.Context, string, net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return nil, nil, ErrClientHandshakeNotImplemented
}

// ServerHandshake 在原始连接上完成服务端 TLS 握手。
func (sc *serverCreds) ServerHandshake(rawConn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	conn := tls.Server(rawConn, sc.config.Clone())
	l := sc.logger.With("远程地址", conn.RemoteAddr().String())

	start := time.Now()
	if err := conn.Handshake(); err != nil {
		l.Errorf("服务端 TLS 握手在 %s 后失败: %s", time.Since(start), err)
		return nil, nil, err
	}
	return conn, credentials.TLSInfo{State: conn.ConnectionState()}, nil
}

func (sc *serverCreds) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{
		SecurityProtocol: "tls",
		SecurityVersion:  "1.2",
	}
}

func (sc *serverCreds) Clone() credentials.TransportCredentials {
	return NewServerTransportCredentials(sc.config.Clone(), sc.logger)
}

func (sc *serverCreds) OverrideServerName(string) error {
	return ErrOverrideHostnameNotSupported
}

// DynamicClientCredentials 是客户端传输凭据, 每次握手时重新读取
// TLS 配置, 证书轮换后新的连接自动用上新材料。
type DynamicClientCredentials struct {
	TLSConfig *tls.Config
}

func (d *DynamicClientCredentials) latestConfig() *tls.Config {
	return d.TLSConfig.Clone()
}

// ClientHandshake 完成客户端 TLS 握手, 记录每次失败。
func (d *DynamicClientCredentials) ClientHandshake(ctx context.Context, authority string, rawConn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	creds := credentials.NewTLS(d.latestConfig())

	start := time.Now()
	conn, auth, err := creds.ClientHandshake(ctx, authority, rawConn)
	if err != nil {
		tlsLogger.With("远程地址", rawConn.RemoteAddr().String()).
			Errorf("客户端 TLS 握手在 %s 后失败: %s", time.Since(start), err)
	}
	return conn, auth, err
}

func (d *DynamicClientCredentials) ServerHandshake(rawConn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return nil, nil, ErrServerHandshakeNotImplemented
}

func (d *DynamicClientCredentials) Info() credentials.ProtocolInfo {
	return credentials.NewTLS(d.latestConfig()).Info()
}

func (d *DynamicClientCredentials) Clone() credentials.TransportCredentials {
	return credentials.NewTLS(d.latestConfig())
}

func (d *DynamicClientCredentials) OverrideServerName(name string) error {
	d.TLSConfig.ServerName = name
	return nil
}

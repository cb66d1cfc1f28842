/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer 把 grpc.Server 与它的监听器、TLS 凭据和健康检查
// 服务绑在一起。证书材料在构造时固定。
type GRPCServer struct {
	// address 是服务器的监听地址, 格式为 hostname:port。
	address string
	// listener 用于处理网络请求的监听器。
	listener net.Listener
	// server 是 gRPC 服务器。
	server *grpc.Server
	// healthServer 是 gRPC 健康检查协议的服务器, 未启用时为 nil。
	healthServer *health.Server
}

// NewGRPCServer 在给定监听地址上创建 GRPCServer。
func NewGRPCServer(address string, serverConfig ServerConfig) (*GRPCServer, error) {
	if address == "" {
		return nil, errors.New("缺少地址address参数配置")
	}
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return NewGRPCServerFromListener(lis, serverConfig)
}

// NewGRPCServerFromListener 在现有监听器上创建 GRPCServer。
func NewGRPCServerFromListener(listener net.Listener, serverConfig ServerConfig) (*GRPCServer, error) {
	var serverOpts []grpc.ServerOption

	if serverConfig.SecOpts.UseTLS {
		tlsConfig, err := serverTLSConfig(serverConfig.SecOpts)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(NewServerTransportCredentials(tlsConfig, serverConfig.Logger)))
	}

	// 发送/接收消息大小, 未设置时用包默认值
	maxSendMsgSize := DefaultMaxSendMsgSize
	if serverConfig.MaxSendMsgSize != 0 {
		maxSendMsgSize = serverConfig.MaxSendMsgSize
	}
	maxRecvMsgSize := DefaultMaxRecvMsgSize
	if serverConfig.MaxRecvMsgSize != 0 {
		maxRecvMsgSize = serverConfig.MaxRecvMsgSize
	}
	serverOpts = append(serverOpts,
		grpc.MaxSendMsgSize(maxSendMsgSize),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
	)

	serverOpts = append(serverOpts, serverConfig.KaOpts.ServerKeepaliveOptions()...)

	connectionTimeout := serverConfig.ConnectionTimeout
	if connectionTimeout <= 0 {
		connectionTimeout = DefaultConnectionTimeout
	}
	serverOpts = append(serverOpts, grpc.ConnectionTimeout(connectionTimeout))

	if len(serverConfig.StreamInterceptors) > 0 {
		serverOpts = append(serverOpts,
			grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(serverConfig.StreamInterceptors...)))
	}
	if len(serverConfig.UnaryInterceptors) > 0 {
		serverOpts = append(serverOpts,
			grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(serverConfig.UnaryInterceptors...)))
	}

	if serverConfig.ServerStatsHandler != nil {
		serverOpts = append(serverOpts, grpc.StatsHandler(serverConfig.ServerStatsHandler))
	}

	s := &GRPCServer{
		address:  listener.Addr().String(),
		listener: listener,
		server:   grpc.NewServer(serverOpts...),
	}

	if serverConfig.HealthCheckEnabled {
		s.healthServer = health.NewServer()
		healthpb.RegisterHealthServer(s.server, s.healthServer)
	}

	return s, nil
}

// serverTLSConfig 由安全参数装配服务器侧的 *tls.Config。
// 不要求客户端证书时仍然请求它, 让拦截器能拿到对端身份。
func serverTLSConfig(secOpts SecureOptions) (*tls.Config, error) {
	if secOpts.Key == nil || secOpts.Certificate == nil {
		return nil, errors.New("当 tls.enabled为true时, tls.cert、tls.key必须包含证书和密钥")
	}
	cert, err := tls.X509KeyPair(secOpts.Certificate, secOpts.Key)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		Certificates:           []tls.Certificate{cert},
		CipherSuites:           secOpts.CipherSuites,
		SessionTicketsDisabled: true,
		ClientAuth:             tls.RequestClientCert,
	}
	if secOpts.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		if len(secOpts.ClientRootCAs) > 0 {
			tlsConfig.ClientCAs = x509.NewCertPool()
			for _, clientRoot := range secOpts.ClientRootCAs {
				if err := addClientRootCA(tlsConfig.ClientCAs, clientRoot); err != nil {
					return nil, err
				}
			}
		}
	}
	return tlsConfig, nil
}

// Address 返回实际的监听地址, 监听端口 0 时由这里取回分配的端口。
func (s *GRPCServer) Address() string {
	return s.address
}

// Server 返回底层的 grpc.Server, 服务实现注册到它上面。
func (s *GRPCServer) Server() *grpc.Server {
	return s.server
}

// Start 启动底层的 gRPC 服务并阻塞在 accept 循环上。
// 启用健康检查时先把所有已注册服务标记为 SERVING。
func (s *GRPCServer) Start() error {
	if s.healthServer != nil {
		for name := range s.server.GetServiceInfo() {
			s.healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		}
		s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}
	return s.server.Serve(s.listener)
}

// Stop 停止底层的grpc服务
func (s *GRPCServer) Stop() {
	s.server.Stop()
}

// addClientRootCA 把一段 PEM 编码的根证书解析后加入证书池。
func addClientRootCA(pool *x509.CertPool, clientRoot []byte) error {
	certs, err := pemToX509Certs(clientRoot)
	if err != nil {
		return errors.WithMessage(err, "将 PEM 编码的证书转换为 X.509 证书失败")
	}
	if len(certs) < 1 {
		return errors.New("未找到客户端根证书")
	}
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return nil
}

// pemToX509Certs 解析一段可能含多个证书的 PEM 数据。
func pemToX509Certs(pemCerts []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemCerts
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

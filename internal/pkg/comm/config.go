/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// 客户端与服务器默认的单条消息上限, 100MB。
// 全量状态走读的批次远小于这个值, 上限只是兜底。
const (
	DefaultMaxRecvMsgSize = 100 * 1024 * 1024
	DefaultMaxSendMsgSize = 100 * 1024 * 1024
)

var (
	// DefaultKeepaliveOptions 是镜像节点两侧连接的保活参数:
	// 客户端每分钟探测一次, 服务端容忍到两小时。
	DefaultKeepaliveOptions = KeepaliveOptions{
		ClientInterval:    time.Duration(1) * time.Minute,
		ClientTimeout:     time.Duration(20) * time.Second,
		ServerInterval:    time.Duration(2) * time.Hour,
		ServerTimeout:     time.Duration(20) * time.Second,
		ServerMinInterval: time.Duration(1) * time.Minute,
	}

	// DefaultTLSCipherSuites 只保留 ECDHE + AES-GCM 组合。
	DefaultTLSCipherSuites = []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	}

	// DefaultConnectionTimeout 是新连接的建立超时。
	DefaultConnectionTimeout = 5 * time.Second
)

// ServerConfig 是 GRPCServer 的构造参数。
type ServerConfig struct {
	// ConnectionTimeout 是新连接的建立超时, 零值用 DefaultConnectionTimeout
	ConnectionTimeout time.Duration
	// SecOpts 是 TLS 相关参数
	SecOpts SecureOptions
	// KaOpts 是保活参数
	KaOpts KeepaliveOptions
	// StreamInterceptors 按序应用在流式调用上
	StreamInterceptors []grpc.StreamServerInterceptor
	// UnaryInterceptors 按序应用在一元调用上
	UnaryInterceptors []grpc.UnaryServerInterceptor
	// Logger 服务器使用的日志器
	Logger *flogging.FabricLogger
	// HealthCheckEnabled 挂载标准 gRPC 健康服务
	HealthCheckEnabled bool
	// ServerStatsHandler 非空时上报连接计数指标
	ServerStatsHandler *ServerStatsHandler
	// MaxRecvMsgSize 覆盖默认的接收消息上限
	MaxRecvMsgSize int
	// MaxSendMsgSize 覆盖默认的发送消息上限
	MaxSendMsgSize int
}

// ClientConfig 是 gRPC 客户端连接的构造参数。
type ClientConfig struct {
	SecOpts        SecureOptions    // TLS 相关参数
	KaOpts         KeepaliveOptions // 保活参数
	DialTimeout    time.Duration    // 建立连接的超时
	AsyncConnect   bool             // true 时拨号不阻塞, 连接按需建立
	MaxRecvMsgSize int              // 覆盖默认的接收消息上限
	MaxSendMsgSize int              // 覆盖默认的发送消息上限
}

// DialOptions 把配置展开成 grpc.DialOption 集合。
func (cc ClientConfig) DialOptions() ([]grpc.DialOption, error) {
	dialOpts := cc.KaOpts.ClientKeepaliveOptions()

	// 同步拨号时在超时内等连接建立, 且对非临时错误快速失败
	if !cc.AsyncConnect {
		dialOpts = append(dialOpts,
			grpc.WithBlock(),
			grpc.FailOnNonTempDialError(true),
		)
	}

	maxRecvMsgSize := DefaultMaxRecvMsgSize
	if cc.MaxRecvMsgSize != 0 {
		maxRecvMsgSize = cc.MaxRecvMsgSize
	}
	maxSendMsgSize := DefaultMaxSendMsgSize
	if cc.MaxSendMsgSize != 0 {
		maxSendMsgSize = cc.MaxSendMsgSize
	}
	dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
		grpc.MaxCallRecvMsgSize(maxRecvMsgSize),
		grpc.MaxCallSendMsgSize(maxSendMsgSize),
	))

	tlsConfig, err := cc.SecOpts.TLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		// 每次握手读取最新配置, 方便测试注入
		transportCreds := &DynamicClientCredentials{TLSConfig: tlsConfig}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(transportCreds))
	} else {
		dialOpts = append(dialOpts, grpc.WithInsecure())
	}

	return dialOpts, nil
}

// Dial 按配置连接给定地址。
func (cc ClientConfig) Dial(address string) (*grpc.ClientConn, error) {
	dialOpts, err := cc.DialOptions()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cc.DialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, address, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "创建 gRPC 新连接失败")
	}
	return conn, nil
}

// SecureOptions 是 gRPC 服务器与客户端共用的 TLS 参数。
type SecureOptions struct {
	// Certificate 本端的 PEM 证书
	Certificate []byte
	// Key 本端的 PEM 私钥
	Key []byte
	// ServerRootCAs 客户端信任的服务器根证书
	ServerRootCAs [][]byte
	// ClientRootCAs 服务器信任的客户端根证书
	ClientRootCAs [][]byte
	// UseTLS 是否启用 TLS
	UseTLS bool
	// RequireClientCert 是否要求对端出示客户端证书
	RequireClientCert bool
	// CipherSuites 允许的密码套件
	CipherSuites []uint16
	// ServerNameOverride 校验服务器证书时使用的主机名,
	// 不是 IP 时也会进入握手以支持虚拟主机
	ServerNameOverride string
}

// TLSConfig 生成客户端侧的 *tls.Config, 未启用 TLS 时返回 nil。
func (so SecureOptions) TLSConfig() (*tls.Config, error) {
	if !so.UseTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: so.ServerNameOverride,
	}

	if len(so.ServerRootCAs) > 0 {
		tlsConfig.RootCAs = x509.NewCertPool()
		for _, certBytes := range so.ServerRootCAs {
			if !tlsConfig.RootCAs.AppendCertsFromPEM(certBytes) {
				return nil, errors.New("添加根证书时出错")
			}
		}
	}

	if so.RequireClientCert {
		cert, err := so.ClientCertificate()
		if err != nil {
			return nil, errors.WithMessage(err, "无法加载客户端证书")
		}
		tlsConfig.Certificates = append(tlsConfig.Certificates, cert)
	}

	return tlsConfig, nil
}

// ClientCertificate 返回将用于TLS握手的客户端证书。
func (so SecureOptions) ClientCertificate() (tls.Certificate, error) {
	if so.Key == nil || so.Certificate == nil {
		return tls.Certificate{}, errors.New("使用TLS握手时需要密钥和证书")
	}
	cert, err := tls.X509KeyPair(so.Certificate, so.Key)
	if err != nil {
		return tls.Certificate{}, errors.WithMessage(err, "创建密钥对失败")
	}
	return cert, nil
}

// KeepaliveOptions 是两侧连接的 gRPC 保活参数。
type KeepaliveOptions struct {
	// ClientInterval 客户端在无活动这么久之后探测服务器
	ClientInterval time.Duration
	// ClientTimeout 客户端探测后等应答的时长, 超过即断开
	ClientTimeout time.Duration
	// ServerInterval 服务器在无活动这么久之后探测客户端
	ServerInterval time.Duration
	// ServerTimeout 服务器探测后等应答的时长, 超过即断开
	ServerTimeout time.Duration
	// ServerMinInterval 允许客户端探测的最短间隔,
	// 探测更频繁的客户端会被断开
	ServerMinInterval time.Duration
}

// ServerKeepaliveOptions 展开为服务器侧的保活选项。
func (ka KeepaliveOptions) ServerKeepaliveOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    ka.ServerInterval,
			Timeout: ka.ServerTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime: ka.ServerMinInterval,
			// 没有进行中的调用也允许探测
			PermitWithoutStream: true,
		}),
	}
}

// ClientKeepaliveOptions 展开为客户端侧的保活拨号选项。
func (ka KeepaliveOptions) ClientKeepaliveOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                ka.ClientInterval,
			Timeout:             ka.ClientTimeout,
			PermitWithoutStream: true,
		}),
	}
}

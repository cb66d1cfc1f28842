/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fabhttp

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/middleware"
	"github.com/meridianledger/mirror/internal/pkg/comm"
)

type Logger interface {
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
}

// Options 是 HTTP 服务骨架的配置。
type Options struct {
	Logger        Logger
	ListenAddress string
	TLS           TLS
}

// Server 是运维端点共用的 HTTP 服务器骨架。
type Server struct {
	logger     Logger
	options    Options
	httpServer *http.Server
	mux        *http.ServeMux
	addr       string
}

// NewServer 构造服务器, 此时还未监听。
func NewServer(o Options) *Server {
	logger := o.Logger
	if logger == nil {
		logger = flogging.MustGetLogger("fabhttp")
	}

	mux := http.NewServeMux()
	return &Server{
		logger:  logger,
		options: o,
		mux:     mux,
		httpServer: &http.Server{
			Addr:         o.ListenAddress,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			TLSConfig: &tls.Config{
				CipherSuites: comm.DefaultTLSCipherSuites,
			},
		},
	}
}

// Start 开始监听并在后台服务连接。
func (s *Server) Start() error {
	listener, err := s.Listen()
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()

	go s.httpServer.Serve(listener)
	return nil
}

// Stop 优雅关闭服务器, 最多等 5 秒。
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// HandlerChain 给处理器包上中间件: 全部请求带请求 ID,
// secure 的端点在 TLS 下还要求客户端证书。
func (s *Server) HandlerChain(h http.Handler, secure bool) http.Handler {
	if secure {
		return middleware.NewChain(middleware.RequireCert(), middleware.WithRequestID(util.GenerateUUID)).Handler(h)
	}
	return middleware.NewChain(middleware.WithRequestID(util.GenerateUUID)).Handler(h)
}

// RegisterHandler 把处理器挂到指定模式上, Start 前后调用都可以。
// ServeMux 对重复的模式会恐慌。
func (s *Server) RegisterHandler(pattern string, handler http.Handler, secure bool) {
	s.mux.Handle(pattern, s.HandlerChain(handler, secure))
}

// Listen 监听配置的地址, TLS 启用时返回 TLS 监听器。
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.options.ListenAddress)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := s.options.TLS.Config()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		listener = tls.NewListener(listener, tlsConfig)
	}
	return listener, nil
}

// Addr 返回实际监听的地址, Start 之后才有值。
func (s *Server) Addr() string {
	return s.addr
}

// Log 实现 go-kit 的日志接口, statsd 客户端用它上报内部错误。
func (s *Server) Log(keyvals ...interface{}) error {
	s.logger.Warn(keyvals...)
	return nil
}

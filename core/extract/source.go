/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"context"

	"github.com/meridianledger/mirror/internal/pkg/comm"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Source 是到单个上游全量历史节点的一条连接。
// 健康评级不在这里: 评级表由 LoadBalancer 持有, 根据调用结果变更。
type Source struct {
	address string
	conn    *grpc.ClientConn
	client  mirrorpb.MirrorPeerClient
	health  healthpb.HealthClient
}

// NewSource 按客户端配置连接上游节点。
// 配置 AsyncConnect 时连接按需建立, 拨号本身不会阻塞。
//
// 输入参数：
//   - address：上游节点地址。
//   - clientConfig：gRPC 客户端配置(TLS、长连接、超时)。
//
// 返回值：
//   - *Source：已建立的源。
//   - error：拨号失败时返回错误。
func NewSource(address string, clientConfig comm.ClientConfig) (*Source, error) {
	conn, err := clientConfig.Dial(address)
	if err != nil {
		return nil, errors.WithMessagef(err, "无法连接上游节点 '%s'", address)
	}
	return NewSourceFromConn(address, conn), nil
}

// NewSourceFromConn 在已有连接上构造源, 测试与网关复用。
func NewSourceFromConn(address string, conn *grpc.ClientConn) *Source {
	return &Source{
		address: address,
		conn:    conn,
		client:  mirrorpb.NewMirrorPeerClient(conn),
		health:  healthpb.NewHealthClient(conn),
	}
}

// Address 返回上游节点地址。
func (s *Source) Address() string {
	return s.address
}

// Client 返回提取协议客户端。
func (s *Source) Client() mirrorpb.MirrorPeerClient {
	return s.client
}

// ConnState 返回底层 gRPC 连接状态。
func (s *Source) ConnState() connectivity.State {
	return s.conn.GetState()
}

// Probe 先经标准 gRPC 健康服务确认对端存活, 再取对端状态。
// 对端报告非服务状态视为探测失败。
func (s *Source) Probe(ctx context.Context) (*mirrorpb.PeerStatusResponse, error) {
	res, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return nil, errors.WithMessagef(err, "上游节点 '%s' 健康检查失败", s.address)
	}
	if res.Status != healthpb.HealthCheckResponse_SERVING {
		return nil, errors.Errorf("上游节点 '%s' 报告非服务状态: %s", s.address, res.Status)
	}
	status, err := s.client.PeerStatus(ctx, &mirrorpb.PeerStatusRequest{})
	if err != nil {
		return nil, errors.WithMessagef(err, "无法获取上游节点 '%s' 的状态", s.address)
	}
	return status, nil
}

// Forward 透传一个查询层请求, 镜像不解释其内容。
func (s *Source) Forward(ctx context.Context, req *mirrorpb.ForwardRequest) (*mirrorpb.ForwardResponse, error) {
	return s.client.Forward(ctx, req)
}

// Close 关闭底层连接。
func (s *Source) Close() error {
	return s.conn.Close()
}

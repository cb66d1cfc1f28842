/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fakepeer 提供测试用的内存版上游节点, 跑在真实的 gRPC
// 服务器上, 实现提取协议与标准健康服务。
package fakepeer

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/grpclogging"
	"github.com/meridianledger/mirror/common/metrics/disabled"
	"github.com/meridianledger/mirror/internal/pkg/comm"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Peer 按脚本应答提取请求。账本与状态由测试预置, 失败通过
// FailNext/FailAll/FailWalkAfter 注入。
type Peer struct {
	grpcServer *comm.GRPCServer

	mutex         sync.Mutex
	ledgers       map[uint64]*mirrorpb.LedgerData
	state         []*mirrorpb.StateObject
	features      []uint32
	scripted      map[uint64][]codes.Code
	failAll       *codes.Code
	walkFailAfter int
	walkDelay     time.Duration
	ledgerDelay   func(seq uint64) time.Duration
	forward       func(*mirrorpb.ForwardRequest) (*mirrorpb.ForwardResponse, error)
}

// Start 在 127.0.0.1 的随机端口上启动节点, 不加密。
func Start() (*Peer, error) {
	return start(comm.SecureOptions{UseTLS: false})
}

// StartTLS 以给定的 TLS 材料启动节点, 用于覆盖加密链路的测试。
func StartTLS(secOpts comm.SecureOptions) (*Peer, error) {
	return start(secOpts)
}

func start(secOpts comm.SecureOptions) (*Peer, error) {
	// 打印请求耗时拦截器 和 请求响应消息
	grpcLogger := flogging.MustGetLogger("fakepeer.grpc").Zap()
	grpcServer, err := comm.NewGRPCServer("127.0.0.1:0", comm.ServerConfig{
		SecOpts:            secOpts,
		HealthCheckEnabled: true,
		ServerStatsHandler: comm.NewServerStatsHandler(&disabled.Provider{}),
		UnaryInterceptors: []grpc.UnaryServerInterceptor{
			grpclogging.UnaryServerInterceptor(grpcLogger),
		},
		StreamInterceptors: []grpc.StreamServerInterceptor{
			grpclogging.StreamServerInterceptor(grpcLogger),
		},
	})
	if err != nil {
		return nil, err
	}

	p := &Peer{
		grpcServer: grpcServer,
		ledgers:    map[uint64]*mirrorpb.LedgerData{},
		scripted:   map[uint64][]codes.Code{},
	}
	mirrorpb.RegisterMirrorPeerServer(grpcServer.Server(), p)
	go grpcServer.Start()
	return p, nil
}

// Address 返回节点的监听地址。
func (p *Peer) Address() string {
	return p.grpcServer.Address()
}

// Stop 停止节点。
func (p *Peer) Stop() {
	p.grpcServer.Stop()
}

// AddLedger 预置一个账本。对端按原样应答, 结构错误的数据
// 也原样返回, 以便测试校验路径。
func (p *Peer) AddLedger(data *mirrorpb.LedgerData) {
	p.AddLedgerAt(data.Header.Sequence, data)
}

// AddLedgerAt 把账本预置在指定序号下, 允许与头部序号不一致。
func (p *Peer) AddLedgerAt(seq uint64, data *mirrorpb.LedgerData) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.ledgers[seq] = data
}

// SetState 预置全量状态, 按键排序。
func (p *Peer) SetState(objects []*mirrorpb.StateObject) {
	sorted := append([]*mirrorpb.StateObject{}, objects...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.state = sorted
}

// SetFeatures 设置对端状态应答中报告的特性集。
func (p *Peer) SetFeatures(features []uint32) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.features = features
}

// FailNext 为指定序号注入 times 次失败, 按调用顺序消费。
func (p *Peer) FailNext(seq uint64, code codes.Code, times int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for i := 0; i < times; i++ {
		p.scripted[seq] = append(p.scripted[seq], code)
	}
}

// FailAll 让所有提取请求都以 code 失败, 直到 Recover 被调用。
func (p *Peer) FailAll(code codes.Code) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.failAll = &code
}

// Recover 撤销 FailAll。
func (p *Peer) Recover() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.failAll = nil
}

// FailWalkAfter 让下一次状态走读在发出 batches 批之后失败一次。
func (p *Peer) FailWalkAfter(batches int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.walkFailAfter = batches + 1
}

// SetLedgerDelay 为每次账本应答注入人为延迟, 用于乱序完成的场景。
func (p *Peer) SetLedgerDelay(f func(seq uint64) time.Duration) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.ledgerDelay = f
}

// SetWalkDelay 为状态走读的每一批注入人为延迟。
func (p *Peer) SetWalkDelay(d time.Duration) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.walkDelay = d
}

// SetForwardHandler 替换透传应答, 默认原样回显负载。
func (p *Peer) SetForwardHandler(f func(*mirrorpb.ForwardRequest) (*mirrorpb.ForwardResponse, error)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.forward = f
}

// LedgerStream 实现提取协议: 数据帧携带账本, 终止帧携带状态码。
func (p *Peer) LedgerStream(req *mirrorpb.LedgerSeekRequest, stream mirrorpb.MirrorPeer_LedgerStreamServer) error {
	end := req.EndSequence
	if end == 0 {
		end = req.StartSequence
	}

	for seq := req.StartSequence; seq <= end; seq++ {
		if code, ok := p.consumeFailure(seq); ok {
			return status.Error(code, "scripted failure")
		}
		if delay := p.delayFor(seq); delay > 0 {
			select {
			case <-time.After(delay):
			case <-stream.Context().Done():
				return stream.Context().Err()
			}
		}

		p.mutex.Lock()
		data, ok := p.ledgers[seq]
		p.mutex.Unlock()
		if !ok {
			return stream.Send(&mirrorpb.LedgerStreamResponse{Status: mirrorpb.Status_NOT_FOUND})
		}
		if !req.IncludeStateDelta {
			data = &mirrorpb.LedgerData{Header: data.Header, Transactions: data.Transactions}
		}
		if err := stream.Send(&mirrorpb.LedgerStreamResponse{Ledger: data}); err != nil {
			return err
		}
	}
	return stream.Send(&mirrorpb.LedgerStreamResponse{Status: mirrorpb.Status_SUCCESS})
}

// StateWalk 按键序分批返回预置状态, 支持断点游标。
func (p *Peer) StateWalk(req *mirrorpb.StateWalkRequest, stream mirrorpb.MirrorPeer_StateWalkServer) error {
	p.mutex.Lock()
	var objects []*mirrorpb.StateObject
	for _, obj := range p.state {
		if len(req.ResumeAfterKey) > 0 && bytes.Compare(obj.Key, req.ResumeAfterKey) <= 0 {
			continue
		}
		objects = append(objects, obj)
	}
	failAfter := p.walkFailAfter
	p.walkFailAfter = 0
	walkDelay := p.walkDelay
	p.mutex.Unlock()

	batchSize := int(req.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	if len(objects) == 0 {
		return stream.Send(&mirrorpb.StateBatch{Done: true})
	}

	sent := 0
	for i := 0; i < len(objects); i += batchSize {
		if failAfter > 0 && sent == failAfter-1 {
			return status.Error(codes.Unavailable, "scripted walk failure")
		}
		if walkDelay > 0 {
			select {
			case <-time.After(walkDelay):
			case <-stream.Context().Done():
				return stream.Context().Err()
			}
		}
		end := i + batchSize
		if end > len(objects) {
			end = len(objects)
		}
		batch := &mirrorpb.StateBatch{
			Objects: objects[i:end],
			LastKey: objects[end-1].Key,
			Done:    end == len(objects),
		}
		if err := stream.Send(batch); err != nil {
			return err
		}
		sent++
	}
	return nil
}

// PeerStatus 报告可服务区间与特性集, 区间从预置账本推导。
func (p *Peer) PeerStatus(context.Context, *mirrorpb.PeerStatusRequest) (*mirrorpb.PeerStatusResponse, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	resp := &mirrorpb.PeerStatusResponse{
		EnabledFeatures: p.features,
		BuildVersion:    "fakepeer",
	}
	for seq := range p.ledgers {
		if resp.FirstSequence == 0 || seq < resp.FirstSequence {
			resp.FirstSequence = seq
		}
		if seq > resp.LastSequence {
			resp.LastSequence = seq
		}
	}
	return resp, nil
}

// Forward 透传查询请求, 默认回显负载。
func (p *Peer) Forward(_ context.Context, req *mirrorpb.ForwardRequest) (*mirrorpb.ForwardResponse, error) {
	p.mutex.Lock()
	handler := p.forward
	p.mutex.Unlock()

	if handler != nil {
		return handler(req)
	}
	return &mirrorpb.ForwardResponse{Payload: req.Payload}, nil
}

func (p *Peer) consumeFailure(seq uint64) (codes.Code, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.failAll != nil {
		return *p.failAll, true
	}
	pending := p.scripted[seq]
	if len(pending) == 0 {
		return codes.OK, false
	}
	p.scripted[seq] = pending[1:]
	return pending[0], true
}

func (p *Peer) delayFor(seq uint64) time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.ledgerDelay == nil {
		return 0
	}
	return p.ledgerDelay(seq)
}

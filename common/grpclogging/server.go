/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package grpclogging 提供把 gRPC 服务端调用写入 zap 的拦截器。
// 每次调用记录方法、对端地址、耗时与状态码; 报文负载使用低于
// debug 的专用级别, 默认不输出。
package grpclogging

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// PayloadLevel 是记录报文负载的级别, 只有显式放开到该级别时才输出。
const PayloadLevel = zapcore.Level(zapcore.DebugLevel - 1)

// UnaryServerInterceptor 返回记录一元调用的 gRPC 服务器拦截器。
func UnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		startTime := time.Now()
		call := logger.With(callFields(ctx, info.FullMethod)...)
		payload := call.Named("payload")

		if ce := payload.Check(PayloadLevel, "接收单次请求: "); ce != nil {
			ce.Write(ProtoMessage("message", req))
		}

		resp, err := handler(ctx, req)

		if err == nil {
			if ce := payload.Check(PayloadLevel, "发送单次响应: "); ce != nil {
				ce.Write(ProtoMessage("message", resp))
			}
		}
		if ce := call.Check(zapcore.InfoLevel, "单次调用已完成: "); ce != nil {
			st, _ := status.FromError(err)
			ce.Write(
				Error(err),
				zap.Stringer("grpc.code", st.Code()),
				zap.Duration("grpc.call_duration", time.Since(startTime)),
			)
		}
		return resp, err
	}
}

// StreamServerInterceptor 返回记录流式调用的 gRPC 服务器拦截器。
// 完成日志在流结束时记录一条, 每条流消息按负载级别记录。
func StreamServerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(service interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		startTime := time.Now()
		call := logger.With(callFields(stream.Context(), info.FullMethod)...)

		err := handler(service, &loggingStream{
			ServerStream: stream,
			payload:      call.Named("payload"),
		})

		if ce := call.Check(zapcore.InfoLevel, "流调用已完成: "); ce != nil {
			st, _ := status.FromError(err)
			ce.Write(
				Error(err),
				zap.Stringer("grpc.code", st.Code()),
				zap.Duration("grpc.call_duration", time.Since(startTime)),
			)
		}
		return err
	}
}

// callFields 提取一次调用的公共日志字段。方法名形如
// /mirrorpb.MirrorPeer/LedgerStream, 拆出服务与方法两段。
func callFields(ctx context.Context, fullMethod string) []zapcore.Field {
	fields := make([]zapcore.Field, 0, 4)
	if parts := strings.Split(fullMethod, "/"); len(parts) == 3 {
		fields = append(fields, zap.String("grpc.service", parts[1]), zap.String("grpc.method", parts[2]))
	}
	if deadline, ok := ctx.Deadline(); ok {
		fields = append(fields, zap.Time("grpc.request_deadline", deadline))
	}
	if p, ok := peer.FromContext(ctx); ok {
		fields = append(fields, zap.String("grpc.peer_address", p.Addr.String()))
		if tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo); ok && len(tlsInfo.State.PeerCertificates) > 0 {
			fields = append(fields, zap.String("grpc.peer_subject", tlsInfo.State.PeerCertificates[0].Subject.String()))
		}
	}
	return fields
}

type loggingStream struct {
	grpc.ServerStream
	payload *zap.Logger
}

func (s *loggingStream) SendMsg(msg interface{}) error {
	if ce := s.payload.Check(PayloadLevel, "发送流消息: "); ce != nil {
		ce.Write(ProtoMessage("message", msg))
	}
	return s.ServerStream.SendMsg(msg)
}

func (s *loggingStream) RecvMsg(msg interface{}) error {
	err := s.ServerStream.RecvMsg(msg)
	if err == nil {
		if ce := s.payload.Check(PayloadLevel, "接收流消息: "); ce != nil {
			ce.Write(ProtoMessage("message", msg))
		}
	}
	return err
}

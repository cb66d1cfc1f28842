/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package grpclogging

import (
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type protoMarshaler struct {
	jsonpb.Marshaler
	message proto.Message
}

func (m *protoMarshaler) MarshalJSON() ([]byte, error) {
	out, err := m.Marshaler.MarshalToString(m.message)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ProtoMessage 把 proto 报文包装为按 jsonpb 序列化的日志字段,
// 非 proto 值退回 zap.Any。
func ProtoMessage(key string, val interface{}) zapcore.Field {
	if m, ok := val.(proto.Message); ok {
		return zap.Reflect(key, &protoMarshaler{message: m})
	}
	return zap.Any(key, val)
}

// Error 生成错误字段, err 为 nil 时跳过。
func Error(err error) zapcore.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.Error(err)
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protoutil

import (
	"github.com/golang/protobuf/proto"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

// the implicit contract of the unmarshalers is that they
// will return a non-nil pointer whenever the error is nil

// UnmarshalLedgerData 将字节反序列化为一个完整的账本提取单元。
// 输入参数：
//   - encoded：要反序列化的字节。
//
// 返回值：
//   - *mirrorpb.LedgerData：反序列化后的账本数据。
//   - error：如果反序列化过程中出现错误, 则返回错误；否则返回nil。
func UnmarshalLedgerData(encoded []byte) (*mirrorpb.LedgerData, error) {
	data := &mirrorpb.LedgerData{}
	err := proto.Unmarshal(encoded, data)
	return data, errors.Wrap(err, "反序列化账本数据出错")
}

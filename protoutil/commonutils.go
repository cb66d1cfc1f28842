/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protoutil

import (
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// Marshal 序列化一个protobuf消息。
// 输入参数：
//   - pb：要序列化的protobuf消息。
//
// 返回值：
//   - []byte：序列化后的字节。
//   - error：如果序列化过程中出现错误, 则返回错误；否则返回nil。
func Marshal(pb proto.Message) ([]byte, error) {
	data, err := proto.Marshal(pb)
	return data, errors.Wrap(err, "序列化protobuf消息出错")
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protoutil

import (
	"bytes"
	"encoding/asn1"
	"encoding/binary"
	"math/big"

	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/pkg/errors"
)

type asn1Header struct {
	Sequence   *big.Int
	ParentHash []byte
	TxSetHash  []byte
}

// LedgerHeaderBytes 返回头部的确定性编码, 作为账本哈希的输入。
// 输入参数：
//   - h：账本头部。
//
// 返回值：
//   - []byte：asn1 编码的头部字段。
func LedgerHeaderBytes(h *mirrorpb.LedgerHeader) []byte {
	asn1Header := asn1Header{
		Sequence:   new(big.Int).SetUint64(h.Sequence),
		ParentHash: h.ParentHash,
		TxSetHash:  h.TxsetHash,
	}
	result, err := asn1.Marshal(asn1Header)
	if err != nil {
		// Errors should only arise for types which cannot be encoded, since the
		// LedgerHeader type is known a-priori to contain only encodable types, an
		// error here is fatal and should not be propagated
		panic(err)
	}
	return result
}

// LedgerHeaderHash 用指定算法族对头部求摘要。
func LedgerHeaderHash(family util.HashFamily, h *mirrorpb.LedgerHeader) ([]byte, error) {
	return util.ComputeHash(family, LedgerHeaderBytes(h))
}

// TxSetBytes 返回交易集的确定性编码: 按交易顺序连接
// id、payload 与 4 字节大端 result。
func TxSetBytes(txs []*mirrorpb.Transaction) []byte {
	var parts [][]byte
	for _, tx := range txs {
		result := make([]byte, 4)
		binary.BigEndian.PutUint32(result, tx.Result)
		parts = append(parts, tx.Id, tx.Payload, result)
	}
	return util.ConcatenateBytes(parts...)
}

// TxSetHash 用指定算法族对交易集求摘要。
// 输入参数：
//   - family：算法族, 主网为 SM3。
//   - txs：按账本顺序排列的交易。
//
// 返回值：
//   - []byte：交易集摘要。
//   - error：未知算法族时返回错误。
func TxSetHash(family util.HashFamily, txs []*mirrorpb.Transaction) ([]byte, error) {
	return util.ComputeHash(family, TxSetBytes(txs))
}

// VerifyTxSet 重新计算交易集摘要并与头部声明的摘要比对。
// 摘要不匹配或头部缺失时返回错误。
func VerifyTxSet(family util.HashFamily, data *mirrorpb.LedgerData) error {
	if data == nil || data.Header == nil {
		return errors.New("账本缺少头部")
	}
	digest, err := TxSetHash(family, data.Transactions)
	if err != nil {
		return err
	}
	if !bytes.Equal(digest, data.Header.TxsetHash) {
		return errors.Errorf("交易集摘要不匹配: 头部声明 %x, 计算得到 %x", data.Header.TxsetHash, digest)
	}
	return nil
}

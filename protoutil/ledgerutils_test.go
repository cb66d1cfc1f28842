/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protoutil_test

import (
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/stretchr/testify/require"
)

func testTransactions() []*mirrorpb.Transaction {
	return []*mirrorpb.Transaction{
		{Id: []byte("tx-1"), Payload: []byte("alpha"), Result: 0},
		{Id: []byte("tx-2"), Payload: []byte("beta"), Result: 258},
	}
}

func TestLedgerHeaderBytesCoversHashedFieldsOnly(t *testing.T) {
	header := &mirrorpb.LedgerHeader{
		Sequence:   42,
		ParentHash: []byte("parent"),
		TxsetHash:  []byte("txset"),
	}
	encoded := protoutil.LedgerHeaderBytes(header)

	// 编码必须是可逆的 asn1 序列, 且只含参与摘要的三个字段
	decoded := struct {
		Sequence   *big.Int
		ParentHash []byte
		TxSetHash  []byte
	}{}
	rest, err := asn1.Unmarshal(encoded, &decoded)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, uint64(42), decoded.Sequence.Uint64())
	require.Equal(t, []byte("parent"), decoded.ParentHash)
	require.Equal(t, []byte("txset"), decoded.TxSetHash)

	// 账本哈希、关闭时间与特性位不参与摘要, 改动它们不影响编码
	richer := &mirrorpb.LedgerHeader{
		Sequence:        42,
		LedgerHash:      []byte("self"),
		ParentHash:      []byte("parent"),
		TxsetHash:       []byte("txset"),
		CloseTime:       &timestamp.Timestamp{Seconds: 1234567890},
		EnabledFeatures: []uint32{1, 2, 3},
	}
	require.Equal(t, encoded, protoutil.LedgerHeaderBytes(richer))
}

func TestLedgerHeaderHashVariesByFamily(t *testing.T) {
	header := &mirrorpb.LedgerHeader{
		Sequence:   7,
		ParentHash: []byte("parent"),
		TxsetHash:  []byte("txset"),
	}

	sm3Hash, err := protoutil.LedgerHeaderHash(util.SM3, header)
	require.NoError(t, err)
	require.Len(t, sm3Hash, 32)

	sha256Hash, err := protoutil.LedgerHeaderHash(util.SHA256, header)
	require.NoError(t, err)
	require.NotEqual(t, sm3Hash, sha256Hash)

	// 同一输入的摘要是确定性的
	again, err := protoutil.LedgerHeaderHash(util.SM3, header)
	require.NoError(t, err)
	require.Equal(t, sm3Hash, again)

	_, err = protoutil.LedgerHeaderHash(util.HashFamily("md5"), header)
	require.Error(t, err)
}

func TestTxSetBytesLayout(t *testing.T) {
	encoded := protoutil.TxSetBytes(testTransactions())

	// id、payload 与 4 字节大端 result 按交易顺序连接
	expected := []byte("tx-1alpha")
	expected = append(expected, 0, 0, 0, 0)
	expected = append(expected, []byte("tx-2beta")...)
	expected = append(expected, 0, 0, 1, 2)
	require.Equal(t, expected, encoded)

	require.Empty(t, protoutil.TxSetBytes(nil))
}

func TestVerifyTxSet(t *testing.T) {
	txs := testTransactions()
	digest, err := protoutil.TxSetHash(util.SM3, txs)
	require.NoError(t, err)

	data := &mirrorpb.LedgerData{
		Header:       &mirrorpb.LedgerHeader{Sequence: 7, TxsetHash: digest},
		Transactions: txs,
	}
	require.NoError(t, protoutil.VerifyTxSet(util.SM3, data))
}

func TestVerifyTxSetDetectsTampering(t *testing.T) {
	txs := testTransactions()
	digest, err := protoutil.TxSetHash(util.SM3, txs)
	require.NoError(t, err)

	data := &mirrorpb.LedgerData{
		Header:       &mirrorpb.LedgerHeader{Sequence: 7, TxsetHash: digest},
		Transactions: txs,
	}
	data.Transactions[1].Payload = []byte("tampered")

	err = protoutil.VerifyTxSet(util.SM3, data)
	require.ErrorContains(t, err, "交易集摘要不匹配")

	// 用错误的算法族校验同样应当失败
	err = protoutil.VerifyTxSet(util.SHA256, &mirrorpb.LedgerData{
		Header:       &mirrorpb.LedgerHeader{Sequence: 7, TxsetHash: digest},
		Transactions: testTransactions(),
	})
	require.ErrorContains(t, err, "交易集摘要不匹配")
}

func TestVerifyTxSetRequiresHeader(t *testing.T) {
	require.EqualError(t, protoutil.VerifyTxSet(util.SM3, nil), "账本缺少头部")
	require.EqualError(t, protoutil.VerifyTxSet(util.SM3, &mirrorpb.LedgerData{}), "账本缺少头部")
}

func TestUnmarshalLedgerDataRejectsGarbage(t *testing.T) {
	_, err := protoutil.UnmarshalLedgerData([]byte("不是 protobuf"))
	require.ErrorContains(t, err, "反序列化账本数据出错")
}

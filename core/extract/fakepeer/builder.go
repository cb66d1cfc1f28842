/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fakepeer

import (
	"fmt"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
)

// BuildLedger 构造一个交易集摘要自洽的账本供测试预置,
// 同一序号的构造结果是确定性的。
func BuildLedger(family util.HashFamily, seq uint64, txCount int) *mirrorpb.LedgerData {
	var txs []*mirrorpb.Transaction
	for i := 0; i < txCount; i++ {
		txs = append(txs, &mirrorpb.Transaction{
			Id:      []byte(fmt.Sprintf("tx-%d-%d", seq, i)),
			Payload: []byte(fmt.Sprintf("payload-%d-%d", seq, i)),
			Result:  0,
		})
	}

	txsetHash, err := protoutil.TxSetHash(family, txs)
	if err != nil {
		panic(err)
	}
	parentHash, err := util.ComputeHash(family, []byte(fmt.Sprintf("%d", seq-1)))
	if err != nil {
		panic(err)
	}

	header := &mirrorpb.LedgerHeader{
		Sequence:   seq,
		ParentHash: parentHash,
		TxsetHash:  txsetHash,
		CloseTime:  &timestamp.Timestamp{Seconds: int64(seq) * 10},
	}
	header.LedgerHash, err = protoutil.LedgerHeaderHash(family, header)
	if err != nil {
		panic(err)
	}

	return &mirrorpb.LedgerData{
		Header:       header,
		Transactions: txs,
		StateDelta: []*mirrorpb.StateObject{
			{
				Op:      mirrorpb.StateOp_STATE_OP_MODIFY,
				Key:     []byte(fmt.Sprintf("acct-%04d", seq%16)),
				Payload: []byte(fmt.Sprintf("balance-%d", seq)),
			},
		},
	}
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package accountindex_test

import (
	"testing"

	"github.com/meridianledger/mirror/core/hooks/accountindex"
	"github.com/meridianledger/mirror/core/ledger/store/leveldbstore"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *accountindex.Index {
	backend, err := leveldbstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return accountindex.New(backend.IndexProvider())
}

func deltaLedger(seq uint64, objects ...*mirrorpb.StateObject) *mirrorpb.LedgerData {
	return &mirrorpb.LedgerData{
		Header:     &mirrorpb.LedgerHeader{Sequence: seq},
		StateDelta: objects,
	}
}

func TestIndexTracksLastTouchedSequence(t *testing.T) {
	idx := openIndex(t)

	require.NoError(t, idx.OnCommit(deltaLedger(5,
		&mirrorpb.StateObject{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("acct-a"), Payload: []byte("a1")},
		&mirrorpb.StateObject{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("acct-b"), Payload: []byte("b1")},
	)))

	seq, ok, err := idx.LastTouched([]byte("acct-a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), seq)

	// 修改只推进被触及账户的序列号
	require.NoError(t, idx.OnCommit(deltaLedger(6,
		&mirrorpb.StateObject{Op: mirrorpb.StateOp_STATE_OP_MODIFY, Key: []byte("acct-a"), Payload: []byte("a2")},
	)))

	seq, ok, err = idx.LastTouched([]byte("acct-a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(6), seq)

	seq, ok, err = idx.LastTouched([]byte("acct-b"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), seq)
}

func TestIndexRemovesDeletedAccounts(t *testing.T) {
	idx := openIndex(t)

	require.NoError(t, idx.OnCommit(deltaLedger(10,
		&mirrorpb.StateObject{Op: mirrorpb.StateOp_STATE_OP_INSERT, Key: []byte("acct-x"), Payload: []byte("x")},
	)))
	require.NoError(t, idx.OnCommit(deltaLedger(11,
		&mirrorpb.StateObject{Op: mirrorpb.StateOp_STATE_OP_DELETE, Key: []byte("acct-x")},
	)))

	_, ok, err := idx.LastTouched([]byte("acct-x"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexUnknownAccount(t *testing.T) {
	idx := openIndex(t)

	_, ok, err := idx.LastTouched([]byte("never-seen"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexEmptyDeltaIsNoOp(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.OnCommit(deltaLedger(42)))
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pgstore

import (
	"context"
	"encoding/binary"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/core/ledger/store"
	"github.com/meridianledger/mirror/protos/mirrorpb"
	"github.com/meridianledger/mirror/protoutil"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("pgstore")

// CreateSchemaSQL 是镜像存储的 Postgres DDL。
// Open 在启动时应用它; ledgerutil 的 init-schema 子命令也使用它。
// 提交的幂等性依赖 ON CONFLICT: 重放一个已提交的批次不会产生重复行。
const CreateSchemaSQL = `
CREATE TABLE IF NOT EXISTS ledgers (
	sequence    BIGINT PRIMARY KEY,
	ledger_hash BYTEA NOT NULL,
	parent_hash BYTEA NOT NULL,
	close_time  BIGINT NOT NULL,
	data        BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS state_objects (
	key     BYTEA PRIMARY KEY,
	payload BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS mirror_meta (
	name  TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);
`

const (
	metaCommittedSequence = "committed_sequence"
	metaStateCursor       = "state_cursor"
)

// Store 是基于 pgx 连接池的镜像账本存储。
// 每次提交是一个事务: 账本行、状态对象增量和水位一起提交。
type Store struct {
	pool *pgxpool.Pool
}

// Open 连接到 connString 指定的 Postgres, 验证连通性并应用 DDL。
// 方法接收者：无（函数）
// 输入参数：
//   - ctx：上下文对象。
//   - connString：pgx 连接串。
//
// 返回值：
//   - *Store：打开的存储实例。
//   - error：打开过程中的错误，如果没有错误则为 nil。
func Open(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "解析 postgres 连接串失败")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	if _, err := pool.Exec(ctx, CreateSchemaSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}

	s := &Store{pool: pool}
	committed, err := s.LastCommittedSequence(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Infof("postgres 镜像存储已打开, 已提交水位 %d", committed)
	return s, nil
}

// Commit 在单个事务中提交一个账本。
// 对 seq <= 水位 的重复提交是无操作的成功 (幂等)。
// 空存储只接受 isInitial 的锚点提交; 非空存储要求 seq 恰好是水位+1。
func (s *Store) Commit(ctx context.Context, seq uint64, data *mirrorpb.LedgerData, isInitial bool) (uint64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE 序列化并发提交者 (正常情况下只有提交移交路径一个写者)
	last, err := lastCommitted(ctx, tx, true)
	if err != nil {
		return 0, err
	}

	if last != 0 && seq <= last {
		logger.Debugf("序列号 %d 已提交 (水位 %d), 跳过重复提交", seq, last)
		return last, nil
	}
	if last != 0 && seq != last+1 {
		return 0, errors.Wrapf(store.ErrSequenceGap, "提交序列号 %d, 但水位是 %d", seq, last)
	}
	if last == 0 && !isInitial {
		return 0, errors.Wrapf(store.ErrSequenceGap, "空存储不能提交非锚点账本 %d", seq)
	}

	value, err := protoutil.Marshal(data)
	if err != nil {
		return 0, errors.WithMessagef(err, "序列化账本 %d 失败", seq)
	}

	header := data.GetHeader()
	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO ledgers (sequence, ledger_hash, parent_hash, close_time, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sequence) DO NOTHING`,
		int64(seq), header.GetLedgerHash(), header.GetParentHash(), header.GetCloseTime().GetSeconds(), value,
	)
	for _, obj := range data.GetStateDelta() {
		if obj.GetOp() == mirrorpb.StateOp_STATE_OP_DELETE {
			batch.Queue(`DELETE FROM state_objects WHERE key = $1`, obj.GetKey())
			continue
		}
		payload := obj.GetPayload()
		if payload == nil {
			payload = []byte{}
		}
		batch.Queue(
			`INSERT INTO state_objects (key, payload) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`,
			obj.GetKey(), payload,
		)
	}
	batch.Queue(
		`INSERT INTO mirror_meta (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		metaCommittedSequence, encodeSequence(seq),
	)
	if isInitial {
		batch.Queue(`DELETE FROM mirror_meta WHERE name = $1`, metaStateCursor)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return seq, nil
}

// LastCommittedSequence 返回已提交水位, 0 表示存储为空。
func (s *Store) LastCommittedSequence(ctx context.Context) (uint64, error) {
	return lastCommitted(ctx, s.pool, false)
}

// queryRower 同时覆盖 *pgxpool.Pool 与 pgx.Tx
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func lastCommitted(ctx context.Context, q queryRower, forUpdate bool) (uint64, error) {
	sql := `SELECT value FROM mirror_meta WHERE name = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var v []byte
	err := q.QueryRow(ctx, sql, metaCommittedSequence).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	if len(v) != 8 {
		return 0, errors.Wrapf(store.ErrCorrupt, "水位记录长度异常 %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// Ledger 返回指定序列号的账本, 不存在时返回 ErrNotFound。
func (s *Store) Ledger(ctx context.Context, seq uint64) (*mirrorpb.LedgerData, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM ledgers WHERE sequence = $1`, int64(seq)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "序列号 %d", seq)
	}
	if err != nil {
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	data, err := protoutil.UnmarshalLedgerData(v)
	if err != nil {
		return nil, errors.Wrapf(store.ErrCorrupt, "反序列化账本 %d 失败: %s", seq, err)
	}
	return data, nil
}

// StateObject 返回状态对象的当前负载, 不存在时返回 nil。
func (s *Store) StateObject(ctx context.Context, key []byte) ([]byte, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM state_objects WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return v, nil
}

// StateCursor 返回初始加载日志的游标, nil 表示没有未完成的初始加载。
func (s *Store) StateCursor(ctx context.Context) ([]byte, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM mirror_meta WHERE name = $1`, metaStateCursor).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return v, nil
}

// SaveStateCursor 在单个事务中应用一批状态对象并持久化游标。
func (s *Store) SaveStateCursor(ctx context.Context, objects []*mirrorpb.StateObject, lastKey []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, obj := range objects {
		payload := obj.GetPayload()
		if payload == nil {
			payload = []byte{}
		}
		batch.Queue(
			`INSERT INTO state_objects (key, payload) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`,
			obj.GetKey(), payload,
		)
	}
	batch.Queue(
		`INSERT INTO mirror_meta (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		metaStateCursor, lastKey,
	)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return nil
}

// ClearStateCursor 删除初始加载日志的游标。
func (s *Store) ClearStateCursor(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mirror_meta WHERE name = $1`, metaStateCursor); err != nil {
		return errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return nil
}

// FirstLedgerSequence 返回存储中最小的账本序列号, 0 表示没有账本记录。
func (s *Store) FirstLedgerSequence(ctx context.Context) (uint64, error) {
	var first int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MIN(sequence), 0) FROM ledgers`).Scan(&first)
	if err != nil {
		return 0, errors.Wrap(store.ErrStorageUnavailable, err.Error())
	}
	return uint64(first), nil
}

// HealthCheck 供运维端点的健康检查器使用。
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close 关闭连接池。
func (s *Store) Close() {
	s.pool.Close()
}

func encodeSequence(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

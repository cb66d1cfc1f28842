/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package util

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/Hyperledger-TWGC/tjfoc-gm/sm3"
	"golang.org/x/crypto/sha3"
)

// HashFamily 标识摘要算法族。Meridian 主网使用 SM3,
// 测试网与私有部署可选 SHA256 或 SHA3-256。
type HashFamily string

const (
	SM3     HashFamily = "sm3"
	SHA256  HashFamily = "sha256"
	SHA3256 HashFamily = "sha3_256"
)

// HasherFor 返回指定算法族的 hash.Hash 构造函数。
// 名称大小写不敏感, 为空默认 SM3, 未知算法族报错。
func HasherFor(family HashFamily) (func() hash.Hash, error) {
	switch HashFamily(strings.ToLower(string(family))) {
	case SM3, "":
		return sm3.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA3256:
		return sha3.New256, nil
	default:
		return nil, fmt.Errorf("unknown hash family: %s", family)
	}
}

// ComputeHash 用指定算法族对数据求摘要。
func ComputeHash(family HashFamily, data []byte) ([]byte, error) {
	newHash, err := HasherFor(family)
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(data)
	return h.Sum(nil), nil
}

// GenerateBytesUUID 按 RFC 4122 生成 16 字节的版本 4 UUID。
func GenerateBytesUUID() []byte {
	uuid := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, uuid); err != nil {
		panic(fmt.Sprintf("错误生成 UUID: %s", err))
	}

	// 4.1.1 节的变体位与 4.1.3 节的版本位
	uuid[8] = uuid[8]&^0xc0 | 0x80
	uuid[6] = uuid[6]&^0xf0 | 0x40

	return uuid
}

// GenerateUUID 返回文本形式的版本 4 UUID。
func GenerateUUID() string {
	id := GenerateBytesUUID()
	return fmt.Sprintf("%x-%x-%x-%x-%x", id[0:4], id[4:6], id[6:8], id[8:10], id[10:])
}

// ConcatenateBytes 把多个字节切片拼成一个。
func ConcatenateBytes(data ...[]byte) []byte {
	finalLength := 0
	for _, slice := range data {
		finalLength += len(slice)
	}
	result := make([]byte, 0, finalLength)
	for _, slice := range data {
		result = append(result, slice...)
	}
	return result
}

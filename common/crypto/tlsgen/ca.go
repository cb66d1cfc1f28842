/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tlsgen

import (
	"crypto"
	"crypto/x509"
)

// CertKeyPair 表示一对 TLS 证书和对应的私钥, 证书与私钥均为 PEM 编码。
type CertKeyPair struct {
	// Cert 是 PEM 编码的证书
	Cert []byte
	// Key 是证书对应的私钥, PEM 编码
	Key []byte

	crypto.Signer
	TLSCert *x509.Certificate
}

// CA 是测试用的证书颁发机构, 签发客户端与服务端 TLS 证书。
type CA interface {
	// CertBytes 以 PEM 编码返回 CA 的证书
	CertBytes() []byte

	// NewClientCertKeyPair 返回由该 CA 签名的客户端证书密钥对
	NewClientCertKeyPair() (*CertKeyPair, error)

	// NewServerCertKeyPair 返回由该 CA 签名、绑定给定主机名的服务端证书密钥对
	NewServerCertKeyPair(hosts ...string) (*CertKeyPair, error)
}

type ca struct {
	caCert *CertKeyPair
}

// NewCA 生成一个自签名的测试 CA。
func NewCA() (CA, error) {
	c := &ca{}
	var err error
	c.caCert, err = newCertKeyPair(true, false, nil, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CertBytes 以 PEM 编码返回 CA 的证书
func (c *ca) CertBytes() []byte {
	return c.caCert.Cert
}

// NewClientCertKeyPair 返回证书和私钥对, 证书由 CA 签名, 用于 TLS 客户端认证。
func (c *ca) NewClientCertKeyPair() (*CertKeyPair, error) {
	return newCertKeyPair(false, false, c.caCert.Signer, c.caCert.TLSCert)
}

// NewServerCertKeyPair 返回证书和私钥对, 主机名写入证书的 SAN 字段。
func (c *ca) NewServerCertKeyPair(hosts ...string) (*CertKeyPair, error) {
	return newCertKeyPair(false, true, c.caCert.Signer, c.caCert.TLSCert, hosts...)
}

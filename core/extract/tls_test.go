/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package extract_test

import (
	"context"
	"testing"
	"time"

	"github.com/meridianledger/mirror/common/crypto/tlsgen"
	"github.com/meridianledger/mirror/common/util"
	"github.com/meridianledger/mirror/core/extract"
	"github.com/meridianledger/mirror/core/extract/fakepeer"
	"github.com/meridianledger/mirror/internal/pkg/comm"
	"github.com/stretchr/testify/require"
)

func newTLSTestSource(t *testing.T, peer *fakepeer.Peer, secOpts comm.SecureOptions) *extract.Source {
	source, err := extract.NewSource(peer.Address(), comm.ClientConfig{
		SecOpts:     secOpts,
		KaOpts:      comm.DefaultKeepaliveOptions,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { source.Close() })
	return source
}

func TestExtractOverTLS(t *testing.T) {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	serverPair, err := ca.NewServerCertKeyPair("127.0.0.1")
	require.NoError(t, err)

	peer, err := fakepeer.StartTLS(comm.SecureOptions{
		UseTLS:      true,
		Certificate: serverPair.Cert,
		Key:         serverPair.Key,
	})
	require.NoError(t, err)
	defer peer.Stop()

	want := fakepeer.BuildLedger(util.SM3, 4, 2)
	peer.AddLedger(want)

	source := newTLSTestSource(t, peer, comm.SecureOptions{
		UseTLS:        true,
		ServerRootCAs: [][]byte{ca.CertBytes()},
	})

	extractor := &extract.Extractor{HashFamily: util.SM3}
	got, err := extractor.Extract(context.Background(), source, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), got.Header.Sequence)
	require.Equal(t, want.Header.TxsetHash, got.Header.TxsetHash)
}

func TestExtractOverMutualTLS(t *testing.T) {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	serverPair, err := ca.NewServerCertKeyPair("127.0.0.1")
	require.NoError(t, err)
	clientPair, err := ca.NewClientCertKeyPair()
	require.NoError(t, err)

	// 仅信任同一 CA 签发的客户端证书
	peer, err := fakepeer.StartTLS(comm.SecureOptions{
		UseTLS:            true,
		Certificate:       serverPair.Cert,
		Key:               serverPair.Key,
		RequireClientCert: true,
		ClientRootCAs:     [][]byte{ca.CertBytes()},
	})
	require.NoError(t, err)
	defer peer.Stop()

	peer.AddLedger(fakepeer.BuildLedger(util.SM3, 6, 1))

	source := newTLSTestSource(t, peer, comm.SecureOptions{
		UseTLS:            true,
		ServerRootCAs:     [][]byte{ca.CertBytes()},
		RequireClientCert: true,
		Certificate:       clientPair.Cert,
		Key:               clientPair.Key,
	})

	extractor := &extract.Extractor{HashFamily: util.SM3}
	got, err := extractor.Extract(context.Background(), source, 6)
	require.NoError(t, err)
	require.Equal(t, uint64(6), got.Header.Sequence)

	status, err := source.Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(6), status.LastSequence)
}

func TestExtractMutualTLSRejectsAnonymousClient(t *testing.T) {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	serverPair, err := ca.NewServerCertKeyPair("127.0.0.1")
	require.NoError(t, err)

	peer, err := fakepeer.StartTLS(comm.SecureOptions{
		UseTLS:            true,
		Certificate:       serverPair.Cert,
		Key:               serverPair.Key,
		RequireClientCert: true,
		ClientRootCAs:     [][]byte{ca.CertBytes()},
	})
	require.NoError(t, err)
	defer peer.Stop()

	peer.AddLedger(fakepeer.BuildLedger(util.SM3, 2, 1))

	// 不带客户端证书, 握手应被服务端拒绝。异步拨号让失败
	// 出现在首个调用上而不是拨号阶段。
	source, err := extract.NewSource(peer.Address(), comm.ClientConfig{
		SecOpts: comm.SecureOptions{
			UseTLS:        true,
			ServerRootCAs: [][]byte{ca.CertBytes()},
		},
		KaOpts:       comm.DefaultKeepaliveOptions,
		DialTimeout:  3 * time.Second,
		AsyncConnect: true,
	})
	require.NoError(t, err)
	defer source.Close()

	extractor := &extract.Extractor{HashFamily: util.SM3}
	_, err = extractor.Extract(context.Background(), source, 2)
	require.Error(t, err)
}

/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package middleware_test

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridianledger/mirror/core/middleware"
	"github.com/stretchr/testify/require"
)

func TestChainCallsMiddlewareInOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	chain := middleware.NewChain(tag("outer"), tag("inner"))
	handler := chain.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestWithRequestIDGeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := middleware.NewChain(middleware.WithRequestID(func() string { return "generated-id" })).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.RequestID(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "generated-id", seen)
	require.Equal(t, "generated-id", rec.Header().Get("X-Request-Id"))
}

func TestWithRequestIDKeepsClientProvided(t *testing.T) {
	var seen string
	handler := middleware.NewChain(middleware.WithRequestID(func() string { return "generated-id" })).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.RequestID(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "client-id", seen)
}

func TestRequireCertRejectsWithoutClientCert(t *testing.T) {
	handler := middleware.NewChain(middleware.RequireCert()).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	// 无 TLS 状态
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// TLS 握手完成但没有已验证的客户端证书链
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCertAcceptsVerifiedChain(t *testing.T) {
	handler := middleware.NewChain(middleware.RequireCert()).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{
		VerifiedChains: [][]*x509.Certificate{{&x509.Certificate{}}},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

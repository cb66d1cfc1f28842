/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package middleware

import "net/http"

// RequireCert 要求请求携带经过验证的 TLS 客户端证书, 否则返回 401。
func RequireCert() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.TLS == nil:
				fallthrough
			case len(r.TLS.VerifiedChains) == 0:
				fallthrough
			case len(r.TLS.VerifiedChains[0]) == 0:
				w.WriteHeader(http.StatusUnauthorized)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

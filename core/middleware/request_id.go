/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package middleware

import (
	"context"
	"net/http"
)

type requestIDKey struct{}

// RequestID 从上下文中取出请求标识, 不存在时返回空串。
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	return reqID
}

// GenerateIDFunc 生成新的请求标识。
type GenerateIDFunc func() string

// WithRequestID 为每个请求附加 X-Request-Id:
// 客户端已携带时原样保留, 否则用 generator 生成一个,
// 并写入请求上下文与响应头。
func WithRequestID(generator GenerateIDFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				reqID = generator()
				r.Header.Set("X-Request-Id", reqID)
			}

			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			r = r.WithContext(ctx)

			w.Header().Add("X-Request-Id", reqID)

			next.ServeHTTP(w, r)
		})
	}
}

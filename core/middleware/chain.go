/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package middleware

import "net/http"

// Middleware 包装一个 http.Handler 并返回新的 http.Handler。
type Middleware func(http.Handler) http.Handler

// Chain 是 HTTP 请求处理的中间件链。
type Chain struct {
	mw []Middleware
}

// NewChain 创建中间件链, 中间件按传入顺序调用。
func NewChain(middlewares ...Middleware) Chain {
	return Chain{
		mw: middlewares,
	}
}

// Handler 返回该链包装后的 http.Handler。
func (c Chain) Handler(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}

	for i := len(c.mw) - 1; i >= 0; i-- {
		h = c.mw[i](h)
	}
	return h
}

/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/meridianledger/mirror/core/pipeline"
)

// StatusReporter 提供管道的只读快照, *pipeline.Pipeline 实现了它。
type StatusReporter interface {
	Status() pipeline.Status
}

// StatusHandler 把管道快照作为 JSON 暴露在 /status 上。
// 快照源在管道装配完成后通过 SetReporter 接入。
type StatusHandler struct {
	mutex    sync.RWMutex
	reporter StatusReporter
}

func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

// SetReporter 绑定快照源, 可在服务器启动前后调用。
func (h *StatusHandler) SetReporter(reporter StatusReporter) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.reporter = reporter
}

func (h *StatusHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		h.sendResponse(resp, http.StatusBadRequest, fmt.Errorf("invalid request method: %s", req.Method))
		return
	}

	h.mutex.RLock()
	reporter := h.reporter
	h.mutex.RUnlock()

	if reporter == nil {
		h.sendResponse(resp, http.StatusServiceUnavailable, fmt.Errorf("管道尚未装配"))
		return
	}

	h.sendResponse(resp, http.StatusOK, reporter.Status())
}

func (h *StatusHandler) sendResponse(resp http.ResponseWriter, code int, payload interface{}) {
	if err, ok := payload.(error); ok {
		payload = &errorResponse{Error: err.Error()}
	}
	js, err := json.Marshal(payload)
	if err != nil {
		resp.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(code)
	resp.Write(js)
}

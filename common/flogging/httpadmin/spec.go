/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpadmin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridianledger/mirror/common/flogging"
)


// Logging 是规约处理器依赖的日志系统能力。
type Logging interface {
	ActivateSpec(spec string) error
	Spec() string
}

// NewSpecHandler 创建 /logspec 管理端点的处理器。
func NewSpecHandler() *SpecHandler {
	return &SpecHandler{
		Logging: flogging.Global,
		Logger:  flogging.MustGetLogger("flogging.httpadmin"),
	}
}

// SpecHandler 通过 HTTP 读取和修改运行期日志级别规约。
// GET 返回当前规约, PUT 应用新规约。
type SpecHandler struct {
	Logging Logging
	Logger  *flogging.FabricLogger
}

func (h *SpecHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPut:
		var logSpec LogSpec
		decoder := json.NewDecoder(req.Body)
		if err := decoder.Decode(&logSpec); err != nil {
			h.sendResponse(resp, http.StatusBadRequest, err)
			return
		}
		req.Body.Close()

		if err := h.Logging.ActivateSpec(logSpec.Spec); err != nil {
			h.sendResponse(resp, http.StatusBadRequest, err)
			return
		}
		resp.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		resp.Header().Set("Content-Type", "application/json")
		resp.WriteHeader(http.StatusOK)
		json.NewEncoder(resp).Encode(&LogSpec{Spec: h.Logging.Spec()})

	default:
		err := fmt.Errorf("invalid request method: %s", req.Method)
		h.sendResponse(resp, http.StatusBadRequest, err)
	}
}

// LogSpec 是请求与响应共用的报文体。
type LogSpec struct {
	Spec string `json:"spec"`
}

func (h *SpecHandler) sendResponse(resp http.ResponseWriter, code int, err error) {
	encoder := json.NewEncoder(resp)
	resp.WriteHeader(code)

	resp.Header().Set("Content-Type", "application/json")
	if err := encoder.Encode(&ErrorResponse{Error: err.Error()}); err != nil {
		h.Logger.Errorw("failed to encode payload", "error", err)
	}
}

// ErrorResponse 是错误应答的报文体。
type ErrorResponse struct {
	Error string `json:"error"`
}

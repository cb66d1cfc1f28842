/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operations_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/meridianledger/mirror/common/fabhttp"
	"github.com/meridianledger/mirror/core/operations"
	"github.com/meridianledger/mirror/core/pipeline"
	"github.com/stretchr/testify/require"
)

// startSystem 在环回地址上启动一个运维端点并返回基地址。
func startSystem(t *testing.T, o operations.Options) (*operations.System, string) {
	if o.ListenAddress == "" {
		o.ListenAddress = "127.0.0.1:0"
	}
	if o.Metrics.Provider == "" {
		o.Metrics.Provider = "disabled"
	}
	system := operations.NewSystem(o)
	require.NoError(t, system.Start())
	t.Cleanup(func() { system.Stop() })
	return system, "http://" + system.Addr()
}

func getBody(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestSystemServesVersion(t *testing.T) {
	_, base := startSystem(t, operations.Options{Version: "1.2.3"})

	code, body := getBody(t, base+"/version")
	require.Equal(t, http.StatusOK, code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Contains(t, payload, "version")
	require.Contains(t, payload, "commit_sha")
}

type checkerFunc func(context.Context) error

func (c checkerFunc) HealthCheck(ctx context.Context) error { return c(ctx) }

func TestSystemServesHealthz(t *testing.T) {
	system, base := startSystem(t, operations.Options{})

	require.NoError(t, system.RegisterChecker("store", checkerFunc(func(context.Context) error {
		return nil
	})))

	code, body := getBody(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "OK")

	// 注册一个失败的检查器后整体降级为 503
	require.NoError(t, system.RegisterChecker("balancer", checkerFunc(func(context.Context) error {
		return fmt.Errorf("all sources unhealthy")
	})))

	code, body = getBody(t, base+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "balancer")
}

type stubReporter struct {
	status pipeline.Status
}

func (s *stubReporter) Status() pipeline.Status { return s.status }

func TestSystemServesStatus(t *testing.T) {
	system, base := startSystem(t, operations.Options{})

	// 管道接入之前返回 503
	code, _ := getBody(t, base+"/status")
	require.Equal(t, http.StatusServiceUnavailable, code)

	system.RegisterStatusReporter(&stubReporter{status: pipeline.Status{
		CommittedSequence:     1042,
		LastValidatedSequence: 1042,
		Halted:                true,
		HaltReason:            "账本 1043 触发修正案拦截",
		Strands: []pipeline.StrandStatus{
			{Strand: 0, State: "HALTED", Sequence: 1043},
		},
	}})

	code, body := getBody(t, base+"/status")
	require.Equal(t, http.StatusOK, code)

	var snapshot pipeline.Status
	require.NoError(t, json.Unmarshal([]byte(body), &snapshot))
	require.Equal(t, uint64(1042), snapshot.CommittedSequence)
	require.True(t, snapshot.Halted)
	require.Contains(t, snapshot.HaltReason, "修正案")
	require.Len(t, snapshot.Strands, 1)
	require.Equal(t, "HALTED", snapshot.Strands[0].State)
}

func TestSystemStatusRejectsNonGet(t *testing.T) {
	_, base := startSystem(t, operations.Options{})

	resp, err := http.Post(base+"/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSystemServesPrometheusMetrics(t *testing.T) {
	_, base := startSystem(t, operations.Options{
		Metrics: operations.MetricsOptions{Provider: "prometheus"},
		Version: "1.2.3",
	})

	code, body := getBody(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "# HELP")
	require.Contains(t, body, "mirror_version")
}

func TestSystemServesLogspec(t *testing.T) {
	_, base := startSystem(t, operations.Options{})

	code, body := getBody(t, base+"/logspec")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "spec")
}

func TestSystemStatsdPublishes(t *testing.T) {
	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer udp.Close()

	_, _ = startSystem(t, operations.Options{
		Options: fabhttp.Options{ListenAddress: "127.0.0.1:0"},
		Metrics: operations.MetricsOptions{
			Provider: "statsd",
			Statsd: &operations.Statsd{
				Network:       "udp",
				Address:       udp.LocalAddr().String(),
				WriteInterval: 50 * time.Millisecond,
				Prefix:        "mirror",
			},
		},
		Version: "1.2.3",
	})

	// 版本仪表盘在启动时置位, 应随某个发送节拍到达
	require.NoError(t, udp.SetReadDeadline(time.Now().Add(10*time.Second)))
	buf := make([]byte, 64*1024)
	var received strings.Builder
	for {
		n, _, err := udp.ReadFrom(buf)
		require.NoError(t, err, "在超时前未收到 statsd 数据")
		received.Write(buf[:n])
		if strings.Contains(received.String(), "mirror.mirror_version") {
			break
		}
	}
}

/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operations

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	kitstatsd "github.com/go-kit/kit/metrics/statsd"
	"github.com/gorilla/handlers"
	"github.com/hyperledger/fabric-lib-go/healthz"
	"github.com/meridianledger/mirror/common/fabhttp"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/common/flogging/httpadmin"
	"github.com/meridianledger/mirror/common/metadata"
	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/metrics/disabled"
	"github.com/meridianledger/mirror/common/metrics/prometheus"
	"github.com/meridianledger/mirror/common/metrics/statsd"
	"github.com/meridianledger/mirror/common/metrics/statsd/goruntime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Logger interface {
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
}

// Statsd 是 statsd 上报的连接参数。
type Statsd struct {
	Network       string
	Address       string
	WriteInterval time.Duration
	Prefix        string
}

// MetricsOptions 选择指标后端: disabled、prometheus 或 statsd。
type MetricsOptions struct {
	Provider string
	Statsd   *Statsd
}

// Options 是运维端点的全部配置。
type Options struct {
	fabhttp.Options
	Metrics MetricsOptions
	// LogRequests 启用时每个请求以 Apache 组合日志格式记录
	LogRequests bool
	Version     string
}

// System 是镜像服务器的运维端点: /metrics、/healthz、/logspec、
// /version 与 /status 共用一个 fabhttp.Server。
type System struct {
	*fabhttp.Server
	metrics.Provider

	logger          Logger
	healthHandler   *healthz.HealthHandler
	statusHandler   *StatusHandler
	options         Options
	statsd          *kitstatsd.Statsd
	collectorTicker *time.Ticker
	sendTicker      *time.Ticker
	versionGauge    metrics.Gauge
}

// NewSystem 构造运维端点并挂好全部处理器, 尚未监听。
func NewSystem(o Options) *System {
	logger := o.Logger
	if logger == nil {
		logger = flogging.MustGetLogger("operations.runner")
	}

	system := &System{
		Server:  fabhttp.NewServer(o.Options),
		logger:  logger,
		options: o,
	}

	system.setupMetrics()
	system.registerHealthz()
	system.registerLogspec()
	system.registerVersion()
	system.registerStatus()

	return system
}

// Start 启动指标上报与 HTTP 服务。
func (s *System) Start() error {
	if err := s.startMetricsTickers(); err != nil {
		return err
	}
	s.versionGauge.With("version", s.options.Version).Set(1)
	return s.Server.Start()
}

// Stop 停掉指标计时器并关闭 HTTP 服务。
func (s *System) Stop() error {
	if s.collectorTicker != nil {
		s.collectorTicker.Stop()
		s.collectorTicker = nil
	}
	if s.sendTicker != nil {
		s.sendTicker.Stop()
		s.sendTicker = nil
	}
	return s.Server.Stop()
}

// RegisterChecker 把一个组件接入 /healthz 的聚合检查。
func (s *System) RegisterChecker(component string, checker healthz.HealthChecker) error {
	return s.healthHandler.RegisterChecker(component, checker)
}

// RegisterStatusReporter 把管道快照源接入 /status 端点。
// 未接入前该端点返回 503。
func (s *System) RegisterStatusReporter(reporter StatusReporter) {
	s.statusHandler.SetReporter(reporter)
}

// setupMetrics 按配置选定指标提供者, prometheus 时顺带挂 /metrics。
func (s *System) setupMetrics() {
	m := s.options.Metrics
	switch m.Provider {
	case "statsd":
		prefix := m.Statsd.Prefix
		if prefix != "" && !strings.HasSuffix(prefix, ".") {
			prefix = prefix + "."
		}

		ks := kitstatsd.New(prefix, s)
		s.Provider = &statsd.Provider{Statsd: ks}
		s.statsd = ks

	case "prometheus":
		s.Provider = &prometheus.Provider{}
		// swagger:operation GET /metrics operations metrics
		// ---
		// responses:
		//     '200':
		//        description: Ok.
		s.registerHandler("/metrics", promhttp.Handler(), s.options.TLS.Enabled)

	default:
		if m.Provider != "disabled" {
			s.logger.Warnf("Unknown provider type: %s; metrics disabled", m.Provider)
		}
		s.Provider = &disabled.Provider{}
	}
	s.versionGauge = versionGauge(s.Provider)
}

func (s *System) registerLogspec() {
	// swagger:operation GET /logspec operations logspecget
	// ---
	// summary: Retrieves the active logging spec for the mirror server.
	// responses:
	//     '200':
	//        description: Ok.

	// swagger:operation PUT /logspec operations logspecput
	// ---
	// summary: Updates the active logging spec for the mirror server.
	//
	// parameters:
	// - name: payload
	//   in: formData
	//   type: string
	//   description: The payload must consist of a single attribute named spec.
	//   required: true
	// responses:
	//     '204':
	//        description: No content.
	//     '400':
	//        description: Bad request.
	// consumes:
	//   - multipart/form-data
	s.registerHandler("/logspec", httpadmin.NewSpecHandler(), s.options.TLS.Enabled)
}

func (s *System) registerHealthz() {
	s.healthHandler = healthz.NewHealthHandler()
	// swagger:operation GET /healthz operations healthz
	// ---
	// summary: Retrieves all registered health checkers for the process.
	// responses:
	//     '200':
	//        description: Ok.
	//     '503':
	//        description: Service unavailable.
	s.registerHandler("/healthz", s.healthHandler, false)
}

func (s *System) registerVersion() {
	versionInfo := &VersionInfoHandler{
		CommitSHA: metadata.CommitSHA,
		Version:   metadata.Version,
	}
	// swagger:operation GET /version operations version
	// ---
	// summary: Returns the mirror server version and the commit SHA on which the release was created.
	// responses:
	//     '200':
	//        description: Ok.
	s.registerHandler("/version", versionInfo, false)
}

func (s *System) registerStatus() {
	s.statusHandler = NewStatusHandler()
	// swagger:operation GET /status operations status
	// ---
	// summary: Returns the pipeline snapshot (committed sequence, halt state, source health, strands).
	// responses:
	//     '200':
	//        description: Ok.
	//     '503':
	//        description: Service unavailable.
	s.registerHandler("/status", s.statusHandler, s.options.TLS.Enabled)
}

// registerHandler 在注册前按配置包上请求日志。
func (s *System) registerHandler(pattern string, handler http.Handler, secure bool) {
	if s.options.LogRequests {
		handler = handlers.CombinedLoggingHandler(requestLogWriter{
			logger: flogging.MustGetLogger("operations.request"),
		}, handler)
	}
	s.RegisterHandler(pattern, handler, secure)
}

// requestLogWriter 把 gorilla 的组合日志行转投给结构化日志器。
type requestLogWriter struct {
	logger *flogging.FabricLogger
}

func (w requestLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// startMetricsTickers 启动 statsd 的采集与发送循环。
// 先拨一次目标地址, 把配置错误在启动阶段暴露出来。
func (s *System) startMetricsTickers() error {
	if s.statsd == nil {
		return nil
	}

	opts := s.options.Metrics.Statsd
	c, err := net.Dial(opts.Network, opts.Address)
	if err != nil {
		return err
	}
	c.Close()

	s.collectorTicker = time.NewTicker(opts.WriteInterval / 2)
	goCollector := goruntime.NewCollector(s.Provider)
	go goCollector.CollectAndPublish(s.collectorTicker.C)

	s.sendTicker = time.NewTicker(opts.WriteInterval)
	go s.statsd.SendLoop(context.TODO(), s.sendTicker.C, opts.Network, opts.Address)

	return nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package featuretally 统计已提交账本上生效的修正案特性。
// 按特性位打标签的计数器让运维方在特性扩散到拦截阈值之前就能看到趋势。
package featuretally

import (
	"strconv"

	"github.com/meridianledger/mirror/common/metrics"
	"github.com/meridianledger/mirror/common/metrics/disabled"
	"github.com/meridianledger/mirror/protos/mirrorpb"
)

// HookName 是该钩子在注册表中的名字。
const HookName = "featuretally"

var observedFeatures = metrics.CounterOpts{
	Namespace:    "hooks",
	Subsystem:    "featuretally",
	Name:         "observed_features",
	Help:         "The number of committed ledgers observed with each enabled feature.",
	LabelNames:   []string{"feature"},
	StatsdFormat: "%{#fqname}.%{feature}",
}

// Tally 把每个已提交账本头部的生效特性位累加到按特性打标签的计数器。
type Tally struct {
	observed metrics.Counter
}

// New 创建特性统计钩子, p 为 nil 时使用禁用的度量工厂。
func New(p metrics.Provider) *Tally {
	if p == nil {
		p = &disabled.Provider{}
	}
	return &Tally{observed: p.NewCounter(observedFeatures)}
}

// Name 返回钩子注册名。
func (t *Tally) Name() string { return HookName }

// OnCommit 为账本头部的每个生效特性位累加一次计数。
func (t *Tally) OnCommit(data *mirrorpb.LedgerData) error {
	for _, id := range data.GetHeader().GetEnabledFeatures() {
		t.observed.With("feature", strconv.FormatUint(uint64(id), 10)).Add(1)
	}
	return nil
}

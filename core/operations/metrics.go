/*
Copyright IBM Corp All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operations

import "github.com/meridianledger/mirror/common/metrics"

var mirrorVersion = metrics.GaugeOpts{
	Name:         "mirror_version",
	Help:         "The active version of the mirror server.",
	LabelNames:   []string{"version"},
	StatsdFormat: "%{#fqname}.%{version}",
}

func versionGauge(provider metrics.Provider) metrics.Gauge {
	return provider.NewGauge(mirrorVersion)
}

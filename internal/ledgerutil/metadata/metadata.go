/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"fmt"
	"runtime"

	"github.com/meridianledger/mirror/common/metadata"
)

// Version 可在构建时通过ldflags注入, 为空时回退到仓库级版本号
var Version string

// ProgramName 程序名
const ProgramName = "ledgerutil"

// GetVersionInfo 返回版本信息
func GetVersionInfo() string {
	if Version == "" {
		Version = metadata.Version
	}
	return fmt.Sprintf("%s:\n Version: %s\n Commit SHA: %s\n Go version: %s\n OS/Arch: %s",
		ProgramName, Version, metadata.CommitSHA, runtime.Version(),
		fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
}

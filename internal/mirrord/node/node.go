/*
Copyright IBM Corp. 2016 All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"fmt"

	"github.com/meridianledger/mirror/common/flogging"
	"github.com/spf13/cobra"
)

const (
	nodeFuncName = "node"
	nodeCmdDes   = "操作镜像节点: start|status|template."
)

var logger = flogging.MustGetLogger("nodeCmd")

// Cmd 函数用于返回节点的 Cobra 命令。
// 返回值：
//   - *cobra.Command：节点的 Cobra 命令。
func Cmd() *cobra.Command {
	// 向节点命令添加子命令
	nodeCmd.AddCommand(startCmd())
	nodeCmd.AddCommand(statusCmd())
	nodeCmd.AddCommand(templateCmd())

	return nodeCmd
}

// nodeCmd 是一个用于表示节点命令的 Cobra 命令。
var nodeCmd = &cobra.Command{
	Use:   nodeFuncName,           // 命令的使用方式
	Short: fmt.Sprint(nodeCmdDes), // 命令的简短描述
	Long:  fmt.Sprint(nodeCmdDes), // 命令的详细描述
}

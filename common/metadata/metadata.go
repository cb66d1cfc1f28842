/*
Copyright London Stock Exchange 2016 All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

// 由 Makefile 定义并通过ldflags传入的变量
var (
	// Version 表示镜像服务器的版本号
	Version = "latest"

	// CommitSHA 表示构建所基于的提交哈希值
	CommitSHA = "development build"
)

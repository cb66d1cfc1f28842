/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dataformat

import "fmt"

const (
	// CurrentFormat 镜像存储当前使用的数据格式版本
	CurrentFormat = "1.0"
)

// ErrFormatMismatch 如果检测到内部数据库中记录的格式版本与打开数据库时
// `Conf` 中指定的格式版本不同，则返回该错误
type ErrFormatMismatch struct {
	DBInfo         string // 数据库的描述信息
	ExpectedFormat string // 预期的数据格式
	Format         string // 实际的数据格式
}

func (e *ErrFormatMismatch) Error() string {
	return fmt.Sprintf("unexpected format. db info = [%s], data format = [%s], expected format = [%s]",
		e.DBInfo, e.Format, e.ExpectedFormat,
	)
}

// IsVersionMismatch 判断错误是否为格式版本不匹配
func IsVersionMismatch(err error) bool {
	_, ok := err.(*ErrFormatMismatch)
	return ok
}

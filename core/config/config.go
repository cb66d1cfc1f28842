/*
Copyright Greg Haskins <gregory.haskins@gmail.com> 2017, All Rights Reserved.
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// OfficialPath 官方 MIRROR_CFG_PATH 环境变量的默认值
const OfficialPath = "/etc/meridian/mirror"
const Current = "./"
const CurrentDefault = "./default"

// LinuxConfig 自定义的 ./sampleconfig 配置目录
const LinuxConfig = "./sampleconfig"
const LinuxDefault = "./sampleconfig/default"

// WindowsConfig 自定义的 ./samplewindowsconfig 配置目录
const WindowsConfig = "./samplewindowsconfig"
const WindowsDefault = "./samplewindowsconfig/default"

// ConfigPaths 按优先顺序返回配置文件的搜索路径,
// 依次为 MIRROR_CFG_PATH、当前目录、官方目录和示例目录。
func ConfigPaths() []string {
	var paths []string
	if p := os.Getenv("MIRROR_CFG_PATH"); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, Current)
	paths = append(paths, CurrentDefault)
	paths = append(paths, OfficialPath)
	// 根据操作系统确定示例配置的路径
	switch runtime.GOOS {
	case "windows":
		paths = append(paths, WindowsConfig)
		paths = append(paths, WindowsDefault)
	default:
		paths = append(paths, LinuxConfig)
		paths = append(paths, LinuxDefault)
	}
	return paths
}

// TranslatePath 函数用于将相对路径转换为相对于指定配置文件的完全限定路径。绝对路径将原样返回。
// 参数：
//   - base string：指定配置文件的路径。
//   - p string：相对路径。
//
// 返回值：
//   - string：转换后的完全限定路径。
func TranslatePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// TranslatePathInPlace 原地将相对路径转换为完全限定路径。
func TranslatePathInPlace(base string, p *string) {
	*p = TranslatePath(base, *p)
}

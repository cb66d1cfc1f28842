/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package viperutil 把 yaml 配置文件解析进结构体, 并支持按
// 配置名派生的环境变量逐项覆盖。目前仅支持 "yaml" 格式。
package viperutil

import (
	"encoding/pem"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Shopify/sarama"
	version "github.com/hashicorp/go-version"
	"github.com/meridianledger/mirror/common/flogging"
	"github.com/meridianledger/mirror/core/config"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var logger = flogging.MustGetLogger("viperutil")

// ConfigParser 定位、读取并解析一个 yaml 配置文件。
// 配置名的大写形式同时是环境变量覆盖的前缀,
// 例如配置名 mirrord 时 MIRRORD_GENERAL_HASHFAMILY 覆盖 General.HashFamily。
type ConfigParser struct {
	configPaths []string // 搜索配置文件的目录列表
	configName  string   // 配置文件名主干, 不含扩展名
	configFile  string   // 实际使用的配置文件路径

	config map[string]interface{} // 解析后的配置树
}

// New 创建一个空的 ConfigParser。
func New() *ConfigParser {
	return &ConfigParser{
		config: map[string]interface{}{},
	}
}

// AddConfigPaths 追加搜索配置文件的目录, 可多次调用。
func (c *ConfigParser) AddConfigPaths(cfgPaths ...string) {
	c.configPaths = append(c.configPaths, cfgPaths...)
}

// SetConfigName 设置配置文件名主干。
func (c *ConfigParser) SetConfigName(in string) {
	c.configName = in
}

// ConfigFileUsed 返回实际使用的配置文件路径。
func (c *ConfigParser) ConfigFileUsed() string {
	return c.configFile
}

// locateConfigFile 在搜索目录里按支持的扩展名逐个探测配置文件。
// 未显式添加目录时使用 MIRROR_CFG_PATH 与内置的默认目录。
func (c *ConfigParser) locateConfigFile() string {
	if c.configFile != "" {
		return c.configFile
	}

	paths := c.configPaths
	if len(paths) == 0 {
		paths = config.ConfigPaths()
	}
	for _, cp := range paths {
		for _, ext := range []string{"yaml", "yml"} {
			fullPath := filepath.Join(cp, c.configName+"."+ext)
			if _, err := os.Stat(fullPath); err == nil {
				c.configFile = fullPath
				return fullPath
			}
		}
	}
	return ""
}

// ReadInConfig 定位并读入配置文件。
func (c *ConfigParser) ReadInConfig() error {
	cf := c.locateConfigFile()
	logger.Debugf("试图打开配置文件: %s", cf)
	file, err := os.Open(cf)
	if err != nil {
		logger.Warnf("无法打开配置文件: %s", cf)
		return err
	}
	defer file.Close()

	logger.Debugf("配置文件: %s", file.Name())
	return c.ReadConfig(file)
}

// ReadConfig 从 reader 解析 yaml 并初始化配置树。
func (c *ConfigParser) ReadConfig(in io.Reader) error {
	return yaml.NewDecoder(in).Decode(c.config)
}

// envOverride 查询某个配置路径的环境变量覆盖值。
// 变量名为 配置名_路径 的大写形式, 路径里的 . 替换为 _。
func (c *ConfigParser) envOverride(key string) string {
	envKey := key
	if c.configName != "" {
		envKey = c.configName + "_" + envKey
	}
	envKey = strings.ToUpper(envKey)
	envKey = strings.ReplaceAll(envKey, ".", "_")
	return os.Getenv(envKey)
}

type envGetter func(key string) string

// mergeStructFields 把目标结构体里 yaml 未提供的字段补进配置树,
// 让只通过环境变量提供的项也能参与覆盖。返回每个键对应的字段类型。
func mergeStructFields(nodeKeys map[string]interface{}, oType reflect.Type) map[string]reflect.Type {
	subTypes := map[string]reflect.Type{}
	if oType == nil || oType.Kind() != reflect.Struct {
		return subTypes
	}

outer:
	for i := 0; i < oType.NumField(); i++ {
		fieldName := oType.Field(i).Name
		fieldType := oType.Field(i).Type

		for key := range nodeKeys {
			if strings.EqualFold(fieldName, key) {
				subTypes[key] = fieldType
				continue outer
			}
		}

		subTypes[fieldName] = fieldType
		nodeKeys[fieldName] = nil
	}
	return subTypes
}

// applyEnvOverrides 深度遍历配置树, 在每个节点上应用环境变量覆盖。
// 值为 nil 的叶子额外探测 <路径>.File 形式的覆盖, 以支持
// 从文件读入的敏感项。
func applyEnvOverrides(base string, getenv envGetter, nodeKeys map[string]interface{}, oType reflect.Type) map[string]interface{} {
	subTypes := mergeStructFields(nodeKeys, oType)

	result := make(map[string]interface{})
	for key, val := range nodeKeys {
		fqKey := base + key

		if override := getenv(fqKey); override != "" {
			val = override
		}

		switch val := val.(type) {
		case map[string]interface{}:
			result[key] = applyEnvOverrides(fqKey+".", getenv, val, subTypes[key])

		case map[interface{}]interface{}:
			result[key] = applyEnvOverrides(fqKey+".", getenv, stringifyKeys(val), subTypes[key])

		case nil:
			if override := getenv(fqKey + ".File"); override != "" {
				result[key] = map[string]interface{}{"File": override}
			}

		default:
			result[key] = val
		}
	}
	return result
}

// stringifyKeys 把 yaml 解出的 map[interface{}]interface{} 转成字符串键。
func stringifyKeys(m map[interface{}]interface{}) map[string]interface{} {
	result := map[string]interface{}{}
	for k, v := range m {
		k, ok := k.(string)
		if !ok {
			panic(fmt.Sprintf("配置键 %v 不是字符串 (值 %v)", k, v))
		}
		result[k] = v
	}
	return result
}

// bracketedListDecodeHook 把 "[a, b, c]" 形式的字符串解析为切片,
// 元素两侧的空白会被去掉。环境变量覆盖列表项时使用这种写法。
func bracketedListDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}

	raw := data.(string)
	l := len(raw)
	if l > 1 && raw[0] == '[' && raw[l-1] == ']' {
		slice := strings.Split(raw[1:l-1], ",")
		for i, v := range slice {
			slice[i] = strings.TrimSpace(v)
		}
		return slice, nil
	}
	return data, nil
}

var byteSizeRE = regexp.MustCompile(`^(?P<size>[0-9]+)\s*(?i)(?P<unit>(k|m|g))b?$`)

// byteSizeDecodeHook 把 "1k"/"20m"/"1g" 形式的大小写进 uint32 字段。
func byteSizeDecodeHook(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.String || t != reflect.Uint32 {
		return data, nil
	}
	raw := data.(string)
	if raw == "" || !byteSizeRE.MatchString(raw) {
		return data, nil
	}

	size, err := strconv.ParseUint(byteSizeRE.ReplaceAllString(raw, "${size}"), 0, 64)
	if err != nil {
		return data, nil
	}
	switch strings.ToLower(byteSizeRE.ReplaceAllString(raw, "${unit}")) {
	case "g":
		size = size << 30
	case "m":
		size = size << 20
	case "k":
		size = size << 10
	}
	if size > math.MaxUint32 {
		return size, fmt.Errorf("value '%s' overflows uint32", raw)
	}
	return size, nil
}

// fileRef 取出 {File: path} 形式映射里的路径, 兼容小写的 file 键。
// 第二个返回值区分 "没有 File 键" 与 "File 键的值为空"。
func fileRef(data interface{}) (string, bool) {
	switch d := data.(type) {
	case map[string]string:
		name, ok := d["File"]
		if !ok {
			name, ok = d["file"]
		}
		return name, ok
	case map[string]interface{}:
		raw, ok := d["File"]
		if !ok {
			raw, ok = d["file"]
		}
		if !ok {
			return "", false
		}
		name, _ := raw.(string)
		return name, true
	}
	return "", false
}

// stringFromFileDecodeHook 把 {File: path} 写法的字符串字段替换为
// 文件内容, 用于不宜直接写进配置文件的敏感值。
func stringFromFileDecodeHook(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.Map || t != reflect.String {
		return data, nil
	}
	name, ok := fileRef(data)
	if !ok {
		return data, nil
	}
	if name == "" {
		return nil, fmt.Errorf("Value of File: was nil")
	}
	bytes, err := ioutil.ReadFile(name)
	if err != nil {
		return data, err
	}
	return string(bytes), nil
}

// pemBlocksFromFileDecodeHook 把 {File: path} 写法的字符串切片字段
// 替换为文件里逐个解出的 CERTIFICATE 块, 每块一个元素。
func pemBlocksFromFileDecodeHook(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.Map || t != reflect.Slice {
		return data, nil
	}
	name, ok := fileRef(data)
	if !ok {
		return data, nil
	}
	if name == "" {
		return nil, fmt.Errorf("Value of File: was nil")
	}
	bytes, err := ioutil.ReadFile(name)
	if err != nil {
		return data, err
	}

	var result []string
	for len(bytes) > 0 {
		var block *pem.Block
		block, bytes = pem.Decode(bytes)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" || len(block.Headers) != 0 {
			continue
		}
		result = append(result, string(pem.EncodeToMemory(block)))
	}
	return result, nil
}

// kafkaVersionRanges 把 sarama 的离散版本常量映射到它们覆盖的
// 版本区间, 配置里写任意落在区间内的版本号都可以。
var kafkaVersionRanges = []struct {
	v   sarama.KafkaVersion
	rng string
}{
	{sarama.V0_8_2_0, ">=0.8.2,<0.8.2.1"},
	{sarama.V0_8_2_1, ">=0.8.2.1,<0.8.2.2"},
	{sarama.V0_8_2_2, ">=0.8.2.2,<0.9.0.0"},
	{sarama.V0_9_0_0, ">=0.9.0.0,<0.9.0.1"},
	{sarama.V0_9_0_1, ">=0.9.0.1,<0.10.0.0"},
	{sarama.V0_10_0_0, ">=0.10.0.0,<0.10.0.1"},
	{sarama.V0_10_0_1, ">=0.10.0.1,<0.10.1.0"},
	{sarama.V0_10_1_0, ">=0.10.1.0,<0.10.2.0"},
	{sarama.V0_10_2_0, ">=0.10.2.0,<0.11.0.0"},
	{sarama.V0_11_0_0, ">=0.11.0.0,<1.0.0"},
	{sarama.V1_0_0_0, ">=1.0.0"},
}

var kafkaVersionConstraints map[sarama.KafkaVersion]version.Constraints

func init() {
	kafkaVersionConstraints = make(map[sarama.KafkaVersion]version.Constraints, len(kafkaVersionRanges))
	for _, r := range kafkaVersionRanges {
		kafkaVersionConstraints[r.v], _ = version.NewConstraint(r.rng)
	}
}

func kafkaVersionDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(sarama.KafkaVersion{}) {
		return data, nil
	}

	v, err := version.NewVersion(data.(string))
	if err != nil {
		return nil, fmt.Errorf("Unable to parse Kafka version: %s", err)
	}

	for kafkaVersion, constraints := range kafkaVersionConstraints {
		if constraints.Check(v) {
			return kafkaVersion, nil
		}
	}
	return nil, fmt.Errorf("Unsupported Kafka version: '%s'", data)
}

// EnhancedExactUnmarshal 把配置树解进 output 指向的结构体。
// 解码是弱类型的, 并叠加时长、列表、字节大小、File 间接与
// Kafka 版本这些钩子; 不属于结构体的配置项被忽略。
func (c *ConfigParser) EnhancedExactUnmarshal(output interface{}) error {
	oType := reflect.TypeOf(output)
	if oType.Kind() != reflect.Ptr {
		return errors.Errorf("提供的输出参数必须是指向结构的指针类型")
	}
	eType := oType.Elem()
	if eType.Kind() != reflect.Struct {
		return errors.Errorf("提供的输出参数必须是指向结构的指针类型, 但它是指向其他内容的指针类型")
	}

	leafKeys := applyEnvOverrides("", c.envOverride, c.config, eType)
	logger.Debugf("%+v", leafKeys)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      false,
		Metadata:         nil,
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			bracketedListDecodeHook,
			byteSizeDecodeHook,
			stringFromFileDecodeHook,
			pemBlocksFromFileDecodeHook,
			kafkaVersionDecodeHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(leafKeys)
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package viperutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/require"
)

func TestReadInConfigSearchesPaths(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "testcfg.yaml"), []byte("Top: hello\n"), 0o644)
	require.NoError(t, err)

	parser := New()
	parser.AddConfigPaths(t.TempDir(), dir)
	parser.SetConfigName("testcfg")
	require.NoError(t, parser.ReadInConfig())
	require.Equal(t, filepath.Join(dir, "testcfg.yaml"), parser.ConfigFileUsed())

	var out struct{ Top string }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, "hello", out.Top)
}

func TestEnvOverride(t *testing.T) {
	parser := New()
	parser.SetConfigName("testcfg")
	require.NoError(t, parser.ReadConfig(strings.NewReader("Inner:\n  Value: 42\n")))

	t.Setenv("TESTCFG_INNER_VALUE", "73")

	var out struct{ Inner struct{ Value int } }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, 73, out.Inner.Value)
}

func TestEnvSlice(t *testing.T) {
	parser := New()
	parser.SetConfigName("testcfg")
	require.NoError(t, parser.ReadConfig(strings.NewReader("Inner:\n  Slice: [will, be, overridden]\n")))

	t.Setenv("TESTCFG_INNER_SLICE", "[a, b, c]")

	var out struct{ Inner struct{ Slice []string } }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, []string{"a", "b", "c"}, out.Inner.Slice)
}

func TestDurationDecode(t *testing.T) {
	parser := New()
	require.NoError(t, parser.ReadConfig(strings.NewReader("Delay: 3m30s\n")))

	var out struct{ Delay time.Duration }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, 210*time.Second, out.Delay)
}

func TestByteSizeDecode(t *testing.T) {
	for raw, expected := range map[string]uint32{
		"1k":  1 << 10,
		"20m": 20 << 20,
		"1g":  1 << 30,
	} {
		parser := New()
		require.NoError(t, parser.ReadConfig(strings.NewReader("Size: "+raw+"\n")))

		var out struct{ Size uint32 }
		require.NoError(t, parser.EnhancedExactUnmarshal(&out))
		require.Equal(t, expected, out.Size, "size %s", raw)
	}
}

func TestStringFromFileDecode(t *testing.T) {
	file := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(file, []byte("opaque"), 0o644))

	parser := New()
	require.NoError(t, parser.ReadConfig(strings.NewReader(fmt.Sprintf("Secret:\n  File: %s\n", file))))

	var out struct{ Secret string }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, "opaque", out.Secret)
}

func TestKafkaVersionDecode(t *testing.T) {
	parser := New()
	require.NoError(t, parser.ReadConfig(strings.NewReader("Version: 0.10.2.0\n")))

	var out struct{ Version sarama.KafkaVersion }
	require.NoError(t, parser.EnhancedExactUnmarshal(&out))
	require.Equal(t, sarama.V0_10_2_0, out.Version)
}

func TestKafkaVersionUnsupported(t *testing.T) {
	parser := New()
	require.NoError(t, parser.ReadConfig(strings.NewReader("Version: 0.6.0\n")))

	var out struct{ Version sarama.KafkaVersion }
	err := parser.EnhancedExactUnmarshal(&out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Unsupported Kafka version")
}

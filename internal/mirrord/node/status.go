/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/meridianledger/mirror/internal/mirrord/localconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	statusCACertFile     string
	statusClientCertFile string
	statusClientKeyFile  string
)

var flags *pflag.FlagSet

func init() {
	resetFlags()
}

// 显式定义方法以方便测试
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVar(&statusCACertFile, "ca-file", "", "运维端点 TLS CA 证书的路径, 缺省信任端点自身的证书")
	flags.StringVar(&statusClientCertFile, "client-cert", "", "双向 TLS 时客户端证书的路径")
	flags.StringVar(&statusClientKeyFile, "client-key", "", "双向 TLS 时客户端私钥的路径")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			logger.Fatalf("Could not find flag '%s' to attach to command '%s'", name, cmd.Name())
		}
	}
}

func statusCmd() *cobra.Command {
	// 在节点状态命令上设置标志。
	attachFlags(nodeStatusCmd, []string{"ca-file", "client-cert", "client-key"})

	return nodeStatusCmd
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",              // 命令的使用方式
	Short: "查询镜像节点状态.",           // 命令的简短描述
	Long:  `查询运维端点 /status 的同步快照.`, // 命令的详细描述
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("检测到后续还有参数args")
		}
		// 解析命令行参数已完成，因此静默显示命令的使用方式
		cmd.SilenceUsage = true
		return status(args)
	},
}

// status 向本机运维端点请求 /status 并把 JSON 快照打印到标准输出。
func status(args []string) error {
	conf, err := localconfig.Load()
	if err != nil {
		logger.Error("解析 mirrord 配置失败: ", err)
		os.Exit(2)
	}

	client, scheme, err := newStatusClient(conf.Operations)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s://%s/status", scheme, conf.Operations.ListenAddress)
	resp, err := client.Get(url)
	if err != nil {
		return errors.WithMessagef(err, "无法访问运维端点 %s", url)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.WithMessage(err, "读取状态响应失败")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("运维端点返回 %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(out.String())
	return nil
}

// newStatusClient 依据运维端点的 TLS 配置构造 HTTP 客户端。
// 未显式给出 CA 时信任端点配置中的服务端证书, 自签发部署下即可工作。
func newStatusClient(ops localconfig.Operations) (*http.Client, string, error) {
	if !ops.TLS.Enabled {
		return http.DefaultClient, "http", nil
	}

	caFile := statusCACertFile
	if caFile == "" {
		caFile = ops.TLS.Certificate
	}
	caPEM, err := ioutil.ReadFile(caFile)
	if err != nil {
		return nil, "", errors.WithMessagef(err, "无法读取 CA 证书 '%s'", caFile)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, "", errors.Errorf("无法解析 CA 证书 '%s'", caFile)
	}

	tlsConfig := &tls.Config{
		RootCAs:    caPool,
		MinVersion: tls.VersionTLS12,
	}
	if statusClientCertFile != "" || statusClientKeyFile != "" {
		keyPair, err := tls.LoadX509KeyPair(statusClientCertFile, statusClientKeyFile)
		if err != nil {
			return nil, "", errors.WithMessage(err, "无法加载客户端证书对")
		}
		tlsConfig.Certificates = []tls.Certificate{keyPair}
	}

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}
	return client, "https", nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kafka

import (
	"time"

	"github.com/pkg/errors"
)

// Retry 控制与 Kafka 集群交互的重试节奏: 建连阶段先按短间隔
// 密集尝试, 超过短期窗口后退为长间隔慢速尝试; 其余字段透传给
// sarama 的生产者与网络层。
type Retry struct {
	ShortInterval time.Duration // 短期轮询间隔
	ShortTotal    time.Duration // 短期重试总时长
	LongInterval  time.Duration // 长期轮询间隔
	LongTotal     time.Duration // 长期重试总时长

	ProducerRetryMax     int           // 单条消息的发送重试上限
	ProducerRetryBackoff time.Duration // 发送重试间隔

	DialTimeout  time.Duration // 建连超时
	ReadTimeout  time.Duration // 读超时
	WriteTimeout time.Duration // 写超时
}

// retryProcess 封装了先短后长的重试循环, 用于在遇到错误时反复
// 执行某个函数直至成功或超时。
type retryProcess struct {
	shortPollingInterval, shortTimeout time.Duration // 短期轮询间隔与总超时时间
	longPollingInterval, longTimeout   time.Duration // 长期轮询间隔与总超时时间
	exit                               chan struct{} // 退出信号通道
	topic                              string        // 目标主题, 仅用于日志
	msg                                string        // 重试过程中的日志信息
	fn                                 func() error  // 尝试执行的函数
}

// newRetryProcess 创建一个新的重试过程实例。
func newRetryProcess(retryOptions Retry, exit chan struct{}, topic string, msg string, fn func() error) *retryProcess {
	return &retryProcess{
		shortPollingInterval: retryOptions.ShortInterval,
		shortTimeout:         retryOptions.ShortTotal,
		longPollingInterval:  retryOptions.LongInterval,
		longTimeout:          retryOptions.LongTotal,
		exit:                 exit,
		topic:                topic,
		msg:                  msg,
		fn:                   fn,
	}
}

// retry 执行重试逻辑, 首先尝试快速重试, 若失败则转为慢速重试。
func (rp *retryProcess) retry() error {
	if err := rp.try(rp.shortPollingInterval, rp.shortTimeout); err != nil {
		logger.Debugf("[topic: %s] 切换到长重试间隔", rp.topic)
		return rp.try(rp.longPollingInterval, rp.longTimeout)
	}
	return nil
}

// try 实施一轮重试, 按给定的间隔和总超时时间循环执行 fn。
func (rp *retryProcess) try(interval, total time.Duration) (err error) {
	// 间隔为零会让 ticker 恐慌, 视为非法配置
	if rp.shortPollingInterval == 0 {
		return errors.New("非法的重试间隔配置")
	}

	// 首次尝试成功则直接返回
	logger.Debugf("[topic: %s] %s", rp.topic, rp.msg)
	if err = rp.fn(); err == nil {
		logger.Debugf("[topic: %s] 重试成功, 跳出重试循环", rp.topic)
		return
	}

	logger.Debugf("[topic: %s] 初始化尝试失败 = %s", rp.topic, err)

	// 启动定时器进行周期性重试
	tickInterval := time.NewTicker(interval)
	tickTotal := time.NewTicker(total)
	defer tickTotal.Stop()
	defer tickInterval.Stop()

	logger.Debugf("[topic: %s] 每隔 %s 重试一次, 总时长 %s", rp.topic, interval.String(), total.String())

	for {
		select {
		case <-rp.exit:
			logger.Warningf("[topic: %s] 接收到退出信号", rp.topic)
			return errors.New("接收到退出指令")
		case <-tickTotal.C:
			// 总超时, 结束本轮重试
			return
		case <-tickInterval.C:
			logger.Debugf("[topic: %s] %s", rp.topic, rp.msg)
			if err = rp.fn(); err == nil {
				logger.Debugf("[topic: %s] 重试成功, 跳出重试循环", rp.topic)
				return
			}

			logger.Debugf("[topic: %s] 操作仍然失败 = %s, 继续重试", rp.topic, err)
		}
	}
}

package worker

import "errors"

var (
	// ErrInvalidSize 池大小必须为正整数
	ErrInvalidSize = errors.New("worker: pool size must be positive")
	// ErrDisconnected 队列已关闭（生产端已退役）
	ErrDisconnected = errors.New("worker: queue disconnected")
	// ErrNilJob 提交了空任务
	ErrNilJob = errors.New("worker: nil job")
)

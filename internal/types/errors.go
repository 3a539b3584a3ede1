// internal/types/errors.go

package types

import (
	"errors"
	"fmt"
)

// 调用方错误，直接返回，不重试
var (
	ErrPreviewNotFound = errors.New("预览不存在")
	ErrQueueFull       = errors.New("广播队列已满")
	ErrQueueStopped    = errors.New("广播队列已停止")
)

// ProtocolError 报文格式错误：长度、头部、命令字或校验和不匹配。
// 解析方遇到该错误时返回空结果，绝不猜测部分状态。
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("协议错误: %s", e.Reason)
}

// NewProtocolError 创建协议错误
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError 传输层错误：连接被拒、超时或写入失败。
// 重试策略由调用方（设备状态存储）决定。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("传输错误 (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StateConflictError 事务性状态变更未能在线路上确认，
// 本地状态已回滚到变更前的快照。
type StateConflictError struct {
	Op  string
	Err error
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("状态变更失败已回滚 (%s): %v", e.Op, e.Err)
}

func (e *StateConflictError) Unwrap() error { return e.Err }

// JobFailure 广播任务在某个阶段失败。记录后强制恢复分区状态，
// 工作协程继续处理下一个任务。
type JobFailure struct {
	JobID string
	Stage string
	Err   error
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("广播任务 %s 在 %s 阶段失败: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobFailure) Unwrap() error { return e.Err }

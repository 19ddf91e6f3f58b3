package provider

import (
	"fmt"
)

// Stage 标记失败发生在单次镜像尝试的哪一步。
type Stage string

const (
	StageFetch  Stage = "fetch"  // 传输失败、超时、非 2xx
	StageDecode Stage = "decode" // 响应体不是期望的 JSON
	StageEmpty  Stage = "empty"  // 2xx 但没有可用数据
)

// StatusError 是上游返回的非 2xx 状态。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d（%s）", e.StatusCode, e.URL)
}

// Error 把底层错误归到某个上游家族的某个阶段，日志里可以直接看出是谁在哪一步失败。
type Error struct {
	Family string
	Stage  Stage
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Family, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fetchErr(family string, err error) *Error {
	return &Error{Family: family, Stage: StageFetch, Err: err}
}

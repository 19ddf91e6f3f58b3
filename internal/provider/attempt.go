package provider

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kaiL163/nekostream/internal/mirror"
)

// ErrEmpty 表示上游返回了成功状态但没有可用数据（软失败：换下一个镜像）。
var ErrEmpty = errors.New("上游返回空结果")

// Outcome 是单个镜像尝试的结果分类。
type Outcome int

const (
	OutcomeOK   Outcome = iota
	OutcomeSoft         // 2xx 但结果不可用
	OutcomeHard         // 传输错误 / 超时 / 非 2xx / 解码失败
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSoft:
		return "soft"
	case OutcomeHard:
		return "hard"
	default:
		return "unknown"
	}
}

// AttemptResult 是单次尝试的显式返回值；上游失败是值，不是 panic。
type AttemptResult[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func OK[T any](v T) AttemptResult[T] { return AttemptResult[T]{Value: v, Outcome: OutcomeOK} }

func Soft[T any](err error) AttemptResult[T] {
	if err == nil {
		err = ErrEmpty
	}
	return AttemptResult[T]{Outcome: OutcomeSoft, Err: err}
}

func Hard[T any](err error) AttemptResult[T] {
	return AttemptResult[T]{Outcome: OutcomeHard, Err: err}
}

// Attempt 记录一次镜像尝试（用于解释降级原因）。
type Attempt struct {
	Host    string
	Outcome Outcome
	Err     error
	Took    time.Duration
}

// Result 是一个家族查询的最终结果。ServedBy 为空表示整个家族都没有贡献数据。
type Result[T any] struct {
	Payload  T
	ServedBy string
	Attempts []Attempt
}

func (r Result[T]) OK() bool { return r.ServedBy != "" }

// Executor 绑定一个家族的镜像集合与单次尝试超时。
type Executor struct {
	Mirrors *mirror.Set
	Timeout time.Duration
	Log     hclog.Logger
}

// AttemptFunc 针对一个具体域名执行一次查询；ctx 已带单次尝试的超时。
type AttemptFunc[T any] func(ctx context.Context, host string) AttemptResult[T]

// Run 按 Mirrors.Order() 依次尝试，直到第一个 OK。
//
// 约束：
// - 每个域名最多尝试一次，不做重试与退避
// - 成功后把该域名设为 sticky
// - 永不返回 error；全部失败时 ServedBy 为空
// - 父 ctx 取消后立即停止，不再尝试后续域名
func Run[T any](ctx context.Context, ex Executor, fn AttemptFunc[T]) Result[T] {
	log := ex.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	family := string(ex.Mirrors.Family())

	var res Result[T]
	for _, host := range ex.Mirrors.Order() {
		if ctx.Err() != nil {
			break
		}

		actx, cancel := attemptContext(ctx, ex.Timeout)
		started := time.Now()
		ar := fn(actx, host)
		cancel()

		took := time.Since(started)
		res.Attempts = append(res.Attempts, Attempt{Host: host, Outcome: ar.Outcome, Err: ar.Err, Took: took})

		if ar.Outcome == OutcomeOK {
			if ex.Mirrors.MarkSuccess(host) {
				log.Info("切换首选镜像", "family", family, "host", host)
			}
			res.Payload = ar.Value
			res.ServedBy = host
			return res
		}
		log.Debug("镜像尝试失败", "family", family, "host", host, "outcome", ar.Outcome.String(), "took", took, "error", ar.Err)
	}

	log.Warn("家族内所有镜像均不可用", "family", family, "attempts", len(res.Attempts))
	return res
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

package resolve

import "time"

// Event 描述一次对外操作的结果，用于日志/进度输出。
type Event struct {
	// Op 是操作名：title|pool|video|kodik_video|calendar|catalog|search。
	Op  string
	Key string
	// State 是最终状态（done|failed），与 merge.State 的字符串形式一致。
	State     string
	FromCache bool
	Count     int
	Took      time.Duration
}

// Observer 用于把“解析结果事件”从核心流程中解耦出来。
//
// 约束：
// - resolve 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	OnResolved(ev Event)
}

// ObserverFunc 让普通函数满足 Observer。
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnResolved(ev Event) { f(ev) }

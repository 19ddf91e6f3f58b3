package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiL163/nekostream/internal/mirror"
)

func newExecutor(t *testing.T, hosts ...string) Executor {
	t.Helper()
	s, err := mirror.New(mirror.FamilyKodik, hosts)
	require.NoError(t, err)
	return Executor{Mirrors: s, Timeout: time.Second, Log: hclog.NewNullLogger()}
}

func TestRun_FallsBackAndUpdatesSticky(t *testing.T) {
	ex := newExecutor(t, "a", "b", "c")

	var tried []string
	res := Run(context.Background(), ex, func(ctx context.Context, host string) AttemptResult[string] {
		tried = append(tried, host)
		switch host {
		case "a":
			return Hard[string](errors.New("connection refused"))
		case "b":
			return Soft[string](nil)
		default:
			return OK("payload from " + host)
		}
	})

	require.True(t, res.OK())
	assert.Equal(t, "c", res.ServedBy)
	assert.Equal(t, "payload from c", res.Payload)
	assert.Equal(t, []string{"a", "b", "c"}, tried)
	assert.Equal(t, "c", ex.Mirrors.Sticky())
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, OutcomeHard, res.Attempts[0].Outcome)
	assert.Equal(t, OutcomeSoft, res.Attempts[1].Outcome)
	assert.Equal(t, OutcomeOK, res.Attempts[2].Outcome)

	// 下一次请求应从新的 sticky 开始。
	tried = nil
	Run(context.Background(), ex, func(ctx context.Context, host string) AttemptResult[string] {
		tried = append(tried, host)
		return OK("")
	})
	assert.Equal(t, []string{"c"}, tried)
}

func TestRun_AllFailReturnsEmptyServedBy(t *testing.T) {
	ex := newExecutor(t, "a", "b")
	res := Run(context.Background(), ex, func(ctx context.Context, host string) AttemptResult[int] {
		return Hard[int](errors.New("boom"))
	})
	assert.False(t, res.OK())
	assert.Equal(t, "", res.ServedBy)
	assert.Len(t, res.Attempts, 2)
	assert.Equal(t, "a", ex.Mirrors.Sticky(), "失败不应改变 sticky")
}

func TestRun_AttemptTimeoutMovesToNextHost(t *testing.T) {
	ex := newExecutor(t, "slow", "fast")
	ex.Timeout = 20 * time.Millisecond

	res := Run(context.Background(), ex, func(ctx context.Context, host string) AttemptResult[string] {
		if host == "slow" {
			<-ctx.Done()
			return Hard[string](ctx.Err())
		}
		return OK("ok")
	})
	require.True(t, res.OK())
	assert.Equal(t, "fast", res.ServedBy)
	assert.ErrorIs(t, res.Attempts[0].Err, context.DeadlineExceeded)
}

func TestRun_ParentCancelStops(t *testing.T) {
	ex := newExecutor(t, "a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	res := Run(ctx, ex, func(ctx context.Context, host string) AttemptResult[int] {
		calls++
		cancel()
		return Hard[int](context.Canceled)
	})
	assert.False(t, res.OK())
	assert.Equal(t, 1, calls)
}

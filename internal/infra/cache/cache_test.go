package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTTL_GetBeforeAndAfterExpiry(t *testing.T) {
	clk := newFakeClock()
	c, err := New[string]("title", Options{Now: clk.Now})
	require.NoError(t, err)

	c.Set("1", "a", time.Minute)
	v, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	clk.Advance(time.Minute)
	_, ok = c.Get("1")
	assert.False(t, ok, "到期时刻应视为未命中")
	assert.Equal(t, 0, c.Len(), "不允许 stale 的实例应删除过期条目")
}

func TestTTL_StaleOnlyWhenAllowed(t *testing.T) {
	clk := newFakeClock()
	strict, err := New[int]("title", Options{Now: clk.Now})
	require.NoError(t, err)
	pool, err := New[int]("pool", Options{Now: clk.Now, AllowStale: true})
	require.NoError(t, err)

	strict.Set("k", 1, time.Second)
	pool.Set("k", 2, time.Second)
	clk.Advance(time.Hour)

	_, _, ok := strict.GetStale("k")
	assert.False(t, ok)

	_, ok = pool.Get("k")
	assert.False(t, ok)
	v, exp, ok := pool.GetStale("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.True(t, exp.Before(clk.Now()))
}

func TestTTL_NonPositiveTTLRemoves(t *testing.T) {
	c, err := New[string]("calendar", Options{})
	require.NoError(t, err)
	c.Set("k", "v", time.Hour)
	c.Set("k", "v", 0)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL_SizeBounded(t *testing.T) {
	c, err := New[int]("title", Options{Size: 2})
	require.NoError(t, err)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Set("c", 3, time.Hour)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNew_RejectsBadName(t *testing.T) {
	for _, n := range []string{"", "../x", "Pool"} {
		_, err := New[int](n, Options{})
		assert.Errorf(t, err, "名称 %q 应被拒绝", n)
	}
}

func TestSnapshot_RoundTripKeepsExpiry(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	src, err := New[[]string]("pool", Options{Now: clk.Now, AllowStale: true})
	require.NoError(t, err)
	src.Set("random", []string{"1", "2"}, 30*time.Minute)
	require.NoError(t, WriteSnapshot(src, dir))

	clk.Advance(time.Hour)
	dst, err := New[[]string]("pool", Options{Now: clk.Now, AllowStale: true})
	require.NoError(t, err)
	n, err := ReadSnapshot(dst, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := dst.Get("random")
	assert.False(t, ok, "恢复后的条目应保留原过期时刻")
	v, _, ok := dst.GetStale("random")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, v)
}

func TestReadSnapshot_MissingFileIsNotError(t *testing.T) {
	c, err := New[int]("pool", Options{AllowStale: true})
	require.NoError(t, err)
	n, err := ReadSnapshot(c, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadSnapshot_WrongName(t *testing.T) {
	dir := t.TempDir()
	a, err := New[int]("pool", Options{AllowStale: true})
	require.NoError(t, err)
	a.Set("k", 1, time.Hour)
	require.NoError(t, WriteSnapshot(a, dir))

	b, err := New[int]("calendar", Options{})
	require.NoError(t, err)
	// 不同名称对应不同文件：读取不到即为 0。
	n, err := ReadSnapshot(b, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteSnapshot_EmptyCacheKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	full, err := New[int]("pool", Options{AllowStale: true})
	require.NoError(t, err)
	full.Set("k", 1, time.Hour)
	require.NoError(t, WriteSnapshot(full, dir))

	empty, err := New[int]("pool", Options{AllowStale: true})
	require.NoError(t, err)
	require.NoError(t, WriteSnapshot(empty, dir))

	n, err := ReadSnapshot(empty, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "空缓存不应覆盖已有快照")
}

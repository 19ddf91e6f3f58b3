package mirror

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CleansAndDedups(t *testing.T) {
	s, err := New(FamilyKodik, []string{" KodikAPI.com ", "https://kodik-api.com/", "kodikapi.com", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"kodikapi.com", "kodik-api.com"}, s.Candidates())
	assert.Equal(t, "kodikapi.com", s.Sticky())
}

func TestNew_EmptyCandidates(t *testing.T) {
	_, err := New(FamilyShikimori, []string{" ", ""})
	require.Error(t, err)
}

func TestOrder_StickyFirstEachCandidateOnce(t *testing.T) {
	s := defaultSet(t, FamilyShikimori)
	for _, sticky := range s.Candidates() {
		s.MarkSuccess(sticky)
		order := s.Order()
		require.Equal(t, sticky, order[0])
		assert.ElementsMatch(t, s.Candidates(), order)
		seen := map[string]int{}
		for _, h := range order {
			seen[h]++
		}
		for h, n := range seen {
			assert.Equalf(t, 1, n, "域名 %s 出现 %d 次", h, n)
		}
	}
}

func TestOrder_PreservesRelativeOrder(t *testing.T) {
	s, err := New(FamilyKodik, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.True(t, s.MarkSuccess("c"))
	assert.Equal(t, []string{"c", "a", "b", "d"}, s.Order())
}

func TestMarkSuccess_IgnoresUnknownHost(t *testing.T) {
	s := defaultSet(t, FamilyAniLibria)
	before := s.Sticky()
	assert.False(t, s.MarkSuccess("evil.example"))
	assert.Equal(t, before, s.Sticky())
}

func TestMarkSuccess_ConcurrentLastWriteWins(t *testing.T) {
	s := defaultSet(t, FamilyKodik)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		host := s.Candidates()[i%len(s.Candidates())]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MarkSuccess(host)
		}()
	}
	wg.Wait()
	assert.Contains(t, s.Candidates(), s.Sticky())
}

func defaultSet(t *testing.T, f Family) *Set {
	t.Helper()
	s, err := New(f, Defaults(f))
	require.NoError(t, err)
	return s
}

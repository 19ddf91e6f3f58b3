// Package merge 把多个上游的标准化片段合并为一条记录。
package merge

import (
	"fmt"
	"sync"

	"github.com/kaiL163/nekostream/internal/domain"
)

// State 是一次解析请求的生命周期状态。
type State int

const (
	StateNotStarted State = iota
	StateFetching
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateNotStarted: {StateFetching},
	StateFetching:   {StateMerging},
	StateMerging:    {StateDone, StateFailed},
}

// Run 跟踪单个请求的状态迁移：NOT_STARTED → FETCHING → MERGING → DONE | FAILED。
type Run struct {
	mu    sync.Mutex
	state State
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// To 执行一次迁移；非法迁移返回错误且状态不变。
func (r *Run) To(next State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range transitions[r.state] {
		if s == next {
			r.state = next
			return nil
		}
	}
	return fmt.Errorf("非法状态迁移：%s -> %s", r.state, next)
}

// Fragments 是一次 title 解析收集到的全部片段。
//
// Catalog 为 nil 表示目录家族没有贡献数据；SearchOK=false 表示搜索家族没有贡献数据。
type Fragments struct {
	ID           string
	Catalog      *domain.Title
	Search       *domain.Title
	SearchOK     bool
	Translations []domain.Translation
}

// Title 合并片段并决定终态。
//
// 规则：
// - 所有上游都没有贡献数据 => NotFound + StateFailed
// - 标量字段：目录值存在且合法时优先，否则取搜索片段的值
// - 海报：目录海报优先，否则取搜索片段的 material_data 海报
// - kinopoisk_id 只来自搜索片段
func Title(f Fragments) (domain.TitleResult, State) {
	if f.Catalog == nil && !f.SearchOK {
		return domain.NotFound(), StateFailed
	}

	primary := domain.Title{}
	if f.Catalog != nil {
		primary = *f.Catalog
	}
	secondary := domain.Title{}
	if f.Search != nil {
		secondary = *f.Search
	}

	m := domain.Title{
		ShikimoriID:   pickString(primary.ShikimoriID, secondary.ShikimoriID, f.ID),
		KinopoiskID:   pickString(secondary.KinopoiskID, primary.KinopoiskID),
		Title:         pickString(primary.Title, secondary.Title),
		TitleOrig:     pickString(primary.TitleOrig, secondary.TitleOrig),
		Year:          pickInt(primary.Year, secondary.Year),
		Kind:          pickString(primary.Kind, secondary.Kind),
		Status:        pickString(primary.Status, secondary.Status),
		EpisodesTotal: pickInt(primary.EpisodesTotal, secondary.EpisodesTotal),
		EpisodesAired: pickInt(primary.EpisodesAired, secondary.EpisodesAired),
		Poster:        pickString(primary.Poster, secondary.Poster),
		Description:   pickString(primary.Description, secondary.Description),
		Genres:        pickSlice(primary.Genres, secondary.Genres),
		Rating:        pickFloat(primary.Rating, secondary.Rating),
	}

	translations := f.Translations
	if translations == nil {
		translations = []domain.Translation{}
	}
	return domain.TitleResult{Found: true, Metadata: &m, Translations: translations}, StateDone
}

// VideoSources 按 provider 注册顺序拼接各自的结果；不按 key 合并。
func VideoSources(parts []domain.VideoResult) domain.VideoResult {
	out := domain.VideoResult{Sources: []domain.VideoSource{}, Torrents: []domain.Torrent{}}
	for _, p := range parts {
		out.Sources = append(out.Sources, p.Sources...)
		out.Torrents = append(out.Torrents, p.Torrents...)
		if out.ReleaseID == 0 && p.ReleaseID != 0 {
			out.ReleaseID = p.ReleaseID
		}
	}
	out.Found = len(out.Sources) > 0
	return out
}

func pickString(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickInt(a, b *int) *int {
	if a != nil && *a >= 0 {
		return a
	}
	if b != nil && *b >= 0 {
		return b
	}
	return nil
}

func pickFloat(a, b *float64) *float64 {
	if a != nil && *a > 0 {
		return a
	}
	if b != nil && *b > 0 {
		return b
	}
	return nil
}

func pickSlice(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	if len(b) > 0 {
		return b
	}
	return []string{}
}

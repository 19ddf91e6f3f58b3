// Package resolve 是解析服务：缓存 → 上游扇出 → 标准化 → 合并 → 回写缓存。
//
// 约束：
// - 所有上游状态（镜像、缓存）由 Service 显式持有，测试可构造互相隔离的实例
// - 对外方法不返回 error：上游失败体现为 Found=false / 空列表
package resolve

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/infra/cache"
	"github.com/kaiL163/nekostream/internal/normalize"
	"github.com/kaiL163/nekostream/internal/provider"
	"github.com/kaiL163/nekostream/internal/provider/anilibria"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
)

const (
	DefaultTitleTTL    = 12 * time.Hour
	DefaultNegativeTTL = 30 * time.Second
	DefaultPoolTTL     = 30 * time.Minute
	DefaultCalendarTTL = time.Hour

	DefaultPoolLimit    = 10
	DefaultCatalogLimit = 20
)

// Options 是构造 Service 的全部依赖。零值字段使用默认值。
type Options struct {
	Shikimori *shikimori.Client
	Kodik     *kodik.Client
	AniLibria *anilibria.Client

	Normalizer normalize.Normalizer

	TitleTTL    time.Duration
	NegativeTTL time.Duration
	PoolTTL     time.Duration
	CalendarTTL time.Duration
	TitleSize   int

	// PoolSize 是一次补货拉取的条目数（同时是单次请求的上限）。
	PoolSize int
	// PoolPages 是 random 池随机页码的上限。
	PoolPages int

	CalendarBatch   int
	CalendarWorkers int

	// StateDir 非空时，池缓存在补货后与 Close 时落盘，并在构造时恢复。
	StateDir string

	Now  func() time.Time
	Rand *rand.Rand
	Log  hclog.Logger
	// Observer 可选；nil 表示不发事件。
	Observer Observer
}

type Service struct {
	shiki  *shikimori.Client
	kodik  *kodik.Client
	libria *anilibria.Client
	norm   normalize.Normalizer
	videos provider.Registry

	titles   *cache.TTL[domain.TitleResult]
	pools    *cache.TTL[[]domain.Title]
	calendar *cache.TTL[[]domain.CalendarEntry]

	titleTTL    time.Duration
	negativeTTL time.Duration
	poolTTL     time.Duration
	calendarTTL time.Duration

	poolSize        int
	poolPages       int
	calendarBatch   int
	calendarWorkers int
	stateDir        string

	group singleflight.Group

	randMu sync.Mutex
	rand   *rand.Rand

	log hclog.Logger
	obs Observer
}

func New(opts Options) (*Service, error) {
	if opts.Shikimori == nil || opts.Kodik == nil || opts.AniLibria == nil {
		return nil, fmt.Errorf("shikimori/kodik/anilibria 客户端都不能为空")
	}
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Normalizer.Player.Preferred == "" {
		opts.Normalizer = normalize.New(opts.Normalizer.FallbackHost, "")
	}

	s := &Service{
		shiki:           opts.Shikimori,
		kodik:           opts.Kodik,
		libria:          opts.AniLibria,
		norm:            opts.Normalizer,
		titleTTL:        durationOr(opts.TitleTTL, DefaultTitleTTL),
		negativeTTL:     durationOr(opts.NegativeTTL, DefaultNegativeTTL),
		poolTTL:         durationOr(opts.PoolTTL, DefaultPoolTTL),
		calendarTTL:     durationOr(opts.CalendarTTL, DefaultCalendarTTL),
		poolSize:        clampInt(intOr(opts.PoolSize, shikimori.MaxLimit), 1, shikimori.MaxLimit),
		poolPages:       intOr(opts.PoolPages, 50),
		calendarBatch:   clampInt(intOr(opts.CalendarBatch, shikimori.MaxLimit), 1, shikimori.MaxLimit),
		calendarWorkers: intOr(opts.CalendarWorkers, 4),
		stateDir:        opts.StateDir,
		rand:            opts.Rand,
		log:             opts.Log,
		obs:             opts.Observer,
	}

	var err error
	if s.titles, err = cache.New[domain.TitleResult]("titles", cache.Options{Size: opts.TitleSize, Now: opts.Now}); err != nil {
		return nil, err
	}
	if s.pools, err = cache.New[[]domain.Title]("pool", cache.Options{Size: 8, AllowStale: true, Now: opts.Now}); err != nil {
		return nil, err
	}
	if s.calendar, err = cache.New[[]domain.CalendarEntry]("calendar", cache.Options{Size: 1, Now: opts.Now}); err != nil {
		return nil, err
	}

	// 注册顺序即拼接顺序：AniLibria 在前，Kodik 在后。
	s.videos, err = provider.NewRegistry(
		&libriaSource{client: s.libria, log: s.log.Named("anilibria")},
		&kodikSource{client: s.kodik, norm: s.norm},
	)
	if err != nil {
		return nil, err
	}

	if s.stateDir != "" {
		n, err := cache.ReadSnapshot(s.pools, s.stateDir)
		if err != nil {
			s.log.Warn("恢复池快照失败", "dir", s.stateDir, "error", err)
		} else if n > 0 {
			s.log.Info("已恢复池快照", "entries", n)
		}
	}
	return s, nil
}

// Close 在进程退出前把池缓存落盘（未配置 StateDir 时为 no-op）。
func (s *Service) Close() error {
	return s.snapshotPool()
}

func (s *Service) snapshotPool() error {
	if s.stateDir == "" {
		return nil
	}
	return cache.WriteSnapshot(s.pools, s.stateDir)
}

func (s *Service) emit(ev Event) {
	if s.obs != nil {
		s.obs.OnResolved(ev)
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func intOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaiL163/nekostream/internal/mirror"
)

const (
	// ErrCodeNotFound 表示通过 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultFileName 是 cwd 下自动发现的配置文件名（可选）。
	DefaultFileName = "nekostream.yaml"
	// EnvKodikToken 覆盖 kodik.token。
	EnvKodikToken = "NEKOSTREAM_KODIK_TOKEN"

	DefaultListen     = ":8000"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultPlayerHost = "kodikapi.com"
	DefaultPosterHost = "shikimori.one"

	DefaultShikimoriTimeout = 2 * time.Second
	DefaultCalendarTimeout  = 10 * time.Second
	DefaultKodikTimeout     = 30 * time.Second
	DefaultLibriaTimeout    = 30 * time.Second

	DefaultTitleTTL    = 12 * time.Hour
	DefaultNegativeTTL = 30 * time.Second
	DefaultPoolTTL     = 30 * time.Minute
	DefaultCalendarTTL = time.Hour
	DefaultTitleSize   = 4096

	DefaultCalendarBatch   = 50
	DefaultCalendarWorkers = 4
	DefaultPoolSize        = 50
	DefaultPoolPages       = 50
)

// DefaultCORSOrigins 是本地前端开发时的默认来源。
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://0.0.0.0:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3001",
}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
type CLIArgs struct {
	ConfigPath string

	Listen    string
	ListenSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 nekostream.yaml 的解析结构（JSON 亦可，YAML 是其超集）。
type FileConfig struct {
	Listen      string           `yaml:"listen"`
	Log         *LogConfig       `yaml:"log"`
	Proxy       *ProxyConfig     `yaml:"proxy"`
	Shikimori   *ShikimoriConfig `yaml:"shikimori"`
	Kodik       *KodikConfig     `yaml:"kodik"`
	AniLibria   *FamilyConfig    `yaml:"anilibria"`
	Cache       *CacheConfig     `yaml:"cache"`
	Calendar    *CalendarConfig  `yaml:"calendar"`
	Pool        *PoolConfig      `yaml:"pool"`
	CORSOrigins []string         `yaml:"cors_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type FamilyConfig struct {
	Mirrors []string      `yaml:"mirrors"`
	Timeout time.Duration `yaml:"timeout"`
}

type ShikimoriConfig struct {
	FamilyConfig    `yaml:",inline"`
	CalendarTimeout time.Duration `yaml:"calendar_timeout"`
	FallbackHost    string        `yaml:"fallback_host"`
}

type KodikConfig struct {
	FamilyConfig `yaml:",inline"`
	Token        string `yaml:"token"`
	PlayerHost   string `yaml:"player_host"`
}

type CacheConfig struct {
	TitleTTL    time.Duration `yaml:"title_ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
	PoolTTL     time.Duration `yaml:"pool_ttl"`
	CalendarTTL time.Duration `yaml:"calendar_ttl"`
	TitleSize   int           `yaml:"title_size"`
	StateDir    string        `yaml:"state_dir"`
}

type CalendarConfig struct {
	BatchSize int `yaml:"batch_size"`
	Workers   int `yaml:"workers"`
}

type PoolConfig struct {
	Size  int `yaml:"size"`
	Pages int `yaml:"pages"`
}

// Family 是一个上游家族的最终配置。
type Family struct {
	Mirrors []string
	Timeout time.Duration
}

type Log struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type Cache struct {
	TitleTTL    time.Duration
	NegativeTTL time.Duration
	PoolTTL     time.Duration
	CalendarTTL time.Duration
	TitleSize   int
	// StateDir 为空表示不落盘（池快照仅在内存中）。
	StateDir string
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；为空表示只用了内置默认值。
	ConfigPath string

	Listen   string
	Log      Log
	ProxyURL string

	Shikimori       Family
	CalendarTimeout time.Duration
	PosterHost      string

	Kodik      Family
	KodikToken string
	PlayerHost string

	AniLibria Family

	Cache Cache

	CalendarBatch   int
	CalendarWorkers int
	PoolSize        int
	PoolPages       int

	CORSOrigins []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数、环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/nekostream.yaml：不存在则全部使用默认值
//
// 覆盖优先级（固定）：
// - listen / log.level：CLI > config > 默认
// - kodik.token：环境变量 > config
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, DefaultFileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Listen: DefaultListen,
		Log: Log{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Shikimori:       Family{Mirrors: mirror.Defaults(mirror.FamilyShikimori), Timeout: DefaultShikimoriTimeout},
		CalendarTimeout: DefaultCalendarTimeout,
		PosterHost:      DefaultPosterHost,
		Kodik:           Family{Mirrors: mirror.Defaults(mirror.FamilyKodik), Timeout: DefaultKodikTimeout},
		PlayerHost:      DefaultPlayerHost,
		AniLibria:       Family{Mirrors: mirror.Defaults(mirror.FamilyAniLibria), Timeout: DefaultLibriaTimeout},
		Cache: Cache{
			TitleTTL:    DefaultTitleTTL,
			NegativeTTL: DefaultNegativeTTL,
			PoolTTL:     DefaultPoolTTL,
			CalendarTTL: DefaultCalendarTTL,
			TitleSize:   DefaultTitleSize,
		},
		CalendarBatch:   DefaultCalendarBatch,
		CalendarWorkers: DefaultCalendarWorkers,
		PoolSize:        DefaultPoolSize,
		PoolPages:       DefaultPoolPages,
		CORSOrigins:     append([]string(nil), DefaultCORSOrigins...),
	}

	// listen：CLI > config > 默认
	if cli.ListenSet {
		eff.Listen = strings.TrimSpace(cli.Listen)
	} else if s := strings.TrimSpace(fc.Listen); s != "" {
		eff.Listen = s
	}
	if eff.Listen == "" {
		return EffectiveConfig{}, fmt.Errorf("listen 不能为空")
	}

	if fc.Log != nil {
		if s := strings.TrimSpace(fc.Log.Level); s != "" {
			eff.Log.Level = s
		}
		if s := strings.TrimSpace(fc.Log.Format); s != "" {
			eff.Log.Format = s
		}
		if s := strings.TrimSpace(fc.Log.File); s != "" {
			eff.Log.File = absCleanFrom(cwdAbs, s)
		}
		if fc.Log.MaxSizeMB > 0 {
			eff.Log.MaxSizeMB = fc.Log.MaxSizeMB
		}
		if fc.Log.MaxBackups > 0 {
			eff.Log.MaxBackups = fc.Log.MaxBackups
		}
	}
	if cli.LogLevelSet {
		eff.Log.Level = strings.TrimSpace(cli.LogLevel)
	}
	eff.Log.Level = strings.ToLower(eff.Log.Level)
	if err := validateLogLevel(eff.Log.Level); err != nil {
		return EffectiveConfig{}, err
	}
	eff.Log.Format = strings.ToLower(eff.Log.Format)
	if eff.Log.Format != "text" && eff.Log.Format != "json" {
		return EffectiveConfig{}, fmt.Errorf("log.format 只能是 text 或 json，实际是 %q", eff.Log.Format)
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%q", eff.ProxyURL)
		}
	}

	var err error
	if fc.Shikimori != nil {
		if eff.Shikimori, err = mergeFamily("shikimori", eff.Shikimori, fc.Shikimori.FamilyConfig); err != nil {
			return EffectiveConfig{}, err
		}
		if fc.Shikimori.CalendarTimeout > 0 {
			eff.CalendarTimeout = clampTimeout(fc.Shikimori.CalendarTimeout)
		}
		if s := strings.TrimSpace(fc.Shikimori.FallbackHost); s != "" {
			if err := validateHost(s); err != nil {
				return EffectiveConfig{}, fmt.Errorf("shikimori.fallback_host 无效：%w", err)
			}
			eff.PosterHost = strings.ToLower(s)
		}
	}
	if fc.Kodik != nil {
		if eff.Kodik, err = mergeFamily("kodik", eff.Kodik, fc.Kodik.FamilyConfig); err != nil {
			return EffectiveConfig{}, err
		}
		eff.KodikToken = strings.TrimSpace(fc.Kodik.Token)
		if s := strings.TrimSpace(fc.Kodik.PlayerHost); s != "" {
			if err := validateHost(s); err != nil {
				return EffectiveConfig{}, fmt.Errorf("kodik.player_host 无效：%w", err)
			}
			eff.PlayerHost = strings.ToLower(s)
		}
	}
	if env := strings.TrimSpace(os.Getenv(EnvKodikToken)); env != "" {
		eff.KodikToken = env
	}
	if fc.AniLibria != nil {
		if eff.AniLibria, err = mergeFamily("anilibria", eff.AniLibria, *fc.AniLibria); err != nil {
			return EffectiveConfig{}, err
		}
	}

	if c := fc.Cache; c != nil {
		eff.Cache.TitleTTL = positiveOr(c.TitleTTL, eff.Cache.TitleTTL)
		eff.Cache.NegativeTTL = positiveOr(c.NegativeTTL, eff.Cache.NegativeTTL)
		eff.Cache.PoolTTL = positiveOr(c.PoolTTL, eff.Cache.PoolTTL)
		eff.Cache.CalendarTTL = positiveOr(c.CalendarTTL, eff.Cache.CalendarTTL)
		if c.TitleSize != 0 {
			eff.Cache.TitleSize = clamp(c.TitleSize, 16, 1<<20)
		}
		if s := strings.TrimSpace(c.StateDir); s != "" {
			eff.Cache.StateDir = absCleanFrom(cwdAbs, s)
		}
	}
	if eff.Cache.NegativeTTL >= eff.Cache.TitleTTL {
		return EffectiveConfig{}, fmt.Errorf("cache.negative_ttl（%s）必须小于 cache.title_ttl（%s）", eff.Cache.NegativeTTL, eff.Cache.TitleTTL)
	}

	if c := fc.Calendar; c != nil {
		// batch 上限由 GraphQL 单次查询的 limit 决定。
		if c.BatchSize != 0 {
			eff.CalendarBatch = clamp(c.BatchSize, 1, 50)
		}
		if c.Workers != 0 {
			eff.CalendarWorkers = clamp(c.Workers, 1, 16)
		}
	}
	if p := fc.Pool; p != nil {
		if p.Size != 0 {
			eff.PoolSize = clamp(p.Size, 1, 50)
		}
		if p.Pages != 0 {
			eff.PoolPages = clamp(p.Pages, 1, 500)
		}
	}

	if fc.CORSOrigins != nil {
		eff.CORSOrigins = eff.CORSOrigins[:0]
		for _, o := range fc.CORSOrigins {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				eff.CORSOrigins = append(eff.CORSOrigins, o)
			}
		}
	}

	return eff, nil
}

func mergeFamily(name string, base Family, fc FamilyConfig) (Family, error) {
	out := base
	if len(fc.Mirrors) > 0 {
		out.Mirrors = nil
		for _, h := range fc.Mirrors {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if err := validateHost(h); err != nil {
				return Family{}, fmt.Errorf("%s.mirrors 无效：%w", name, err)
			}
			out.Mirrors = append(out.Mirrors, h)
		}
		if len(out.Mirrors) == 0 {
			return Family{}, fmt.Errorf("%s.mirrors 不能为空", name)
		}
	}
	if fc.Timeout > 0 {
		out.Timeout = clampTimeout(fc.Timeout)
	}
	return out, nil
}

// validateHost 只接受 host[:port]，不接受 scheme 与路径。
func validateHost(h string) error {
	if strings.Contains(h, "://") || strings.ContainsAny(h, "/?# ") {
		return fmt.Errorf("%q 必须是纯域名（不含 scheme/路径）", h)
	}
	u, err := url.Parse("//" + h)
	if err != nil || u.Host != h || u.Hostname() == "" {
		return fmt.Errorf("%q 不是合法的域名", h)
	}
	return nil
}

func validateLogLevel(l string) error {
	switch l {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log.level 只能是 trace|debug|info|warn|error，实际是 %q", l)
	}
}

func clampTimeout(d time.Duration) time.Duration {
	if d < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	if d > 2*time.Minute {
		return 2 * time.Minute
	}
	return d
}

func positiveOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

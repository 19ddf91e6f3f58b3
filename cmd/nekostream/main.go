package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"

	"github.com/kaiL163/nekostream/internal/app/resolve"
	"github.com/kaiL163/nekostream/internal/config"
	"github.com/kaiL163/nekostream/internal/domain"
	"github.com/kaiL163/nekostream/internal/infra/httpx"
	"github.com/kaiL163/nekostream/internal/infra/logx"
	"github.com/kaiL163/nekostream/internal/mirror"
	"github.com/kaiL163/nekostream/internal/normalize"
	"github.com/kaiL163/nekostream/internal/provider/anilibria"
	"github.com/kaiL163/nekostream/internal/provider/kodik"
	"github.com/kaiL163/nekostream/internal/provider/shikimori"
	"github.com/kaiL163/nekostream/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 是可测试的入口：stdout 只输出结果 JSON，日志与进度走 stderr。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(stdout)
		return 0
	}

	ca, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printUsage(stderr)
		return 2
	}
	if ca.Help {
		printUsage(stdout)
		return 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:  ca.ConfigPath,
		Listen:      ca.Listen,
		ListenSet:   ca.ListenSet,
		LogLevel:    ca.LogLevel,
		LogLevelSet: ca.LogLevelSet,
	})
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	log, closer := logx.New(logx.Options{
		Level:      eff.Log.Level,
		Format:     eff.Log.Format,
		File:       eff.Log.File,
		MaxSizeMB:  eff.Log.MaxSizeMB,
		MaxBackups: eff.Log.MaxBackups,
		Output:     stderr,
	})
	defer closer.Close()

	var ui *progressUI
	if ca.Command != "serve" && isTTYWriter(stderr) {
		ui = newProgressUI(stderr)
		ui.OnStart(eff, ca.Command)
	}

	var obs resolve.Observer
	if ui != nil {
		obs = ui
	}
	svc, err := buildService(eff, log, obs)
	if err != nil {
		fmt.Fprintf(stderr, "初始化失败：%v\n", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("池快照写入失败", "error", err)
		}
	}()

	switch ca.Command {
	case "serve":
		return serve(ctx, eff, svc, log)
	case "title":
		return emitJSON(stdout, svc.ResolveTitle(ctx, ca.Positional[0]))
	case "video":
		if ca.KodikOnly {
			return emitJSON(stdout, svc.KodikSources(ctx, ca.Positional[0]))
		}
		return emitJSON(stdout, svc.ResolveVideoSources(ctx, ca.Positional[0]))
	case "pool":
		kind, _ := domain.ParsePoolKind(firstOr(ca.Positional, ""))
		return emitJSON(stdout, svc.ResolvePool(ctx, kind, ca.Limit))
	case "calendar":
		return emitJSON(stdout, svc.ResolveCalendar(ctx))
	case "search":
		return emitJSON(stdout, svc.SearchTranslations(ctx, strings.Join(ca.Positional, " ")))
	default:
		fmt.Fprintf(stderr, "未知命令：%q\n", ca.Command)
		return 2
	}
}

// buildService 按最终配置装配三个上游家族与解析服务。
func buildService(eff config.EffectiveConfig, log hclog.Logger, obs resolve.Observer) (*resolve.Service, error) {
	// 目录与次级视频接口要求可识别的 UA；搜索接口使用随机 UA。
	appHTTP, err := httpx.NewUpstreamClient(httpx.Options{
		ProxyURL:   eff.ProxyURL,
		UserAgent:  shikimori.UserAgent,
		Accept:     "application/json",
		MaxAttempt: max(eff.Shikimori.Timeout, eff.CalendarTimeout, eff.AniLibria.Timeout),
	})
	if err != nil {
		return nil, err
	}
	kodikHTTP, err := httpx.NewUpstreamClient(httpx.Options{ProxyURL: eff.ProxyURL, Accept: "application/json", MaxAttempt: eff.Kodik.Timeout})
	if err != nil {
		return nil, err
	}

	shikiSet, err := mirror.New(mirror.FamilyShikimori, eff.Shikimori.Mirrors)
	if err != nil {
		return nil, err
	}
	kodikSet, err := mirror.New(mirror.FamilyKodik, eff.Kodik.Mirrors)
	if err != nil {
		return nil, err
	}
	libriaSet, err := mirror.New(mirror.FamilyAniLibria, eff.AniLibria.Mirrors)
	if err != nil {
		return nil, err
	}

	for _, set := range []*mirror.Set{shikiSet, kodikSet, libriaSet} {
		log.Debug("镜像候选", "family", set.Family(), "candidates", set.Candidates())
	}
	if eff.KodikToken == "" {
		log.Warn("未配置 Kodik token，搜索家族的请求将被上游拒绝", "env", config.EnvKodikToken)
	}

	return resolve.New(resolve.Options{
		Shikimori: shikimori.New(shikimori.Options{
			Mirrors:         shikiSet,
			HTTP:            appHTTP,
			Timeout:         eff.Shikimori.Timeout,
			CalendarTimeout: eff.CalendarTimeout,
			Log:             log.Named("shikimori"),
		}),
		Kodik: kodik.New(kodik.Options{
			Mirrors: kodikSet,
			HTTP:    kodikHTTP,
			Token:   eff.KodikToken,
			Timeout: eff.Kodik.Timeout,
			Log:     log.Named("kodik"),
		}),
		AniLibria: anilibria.New(anilibria.Options{
			Mirrors: libriaSet,
			HTTP:    appHTTP,
			Timeout: eff.AniLibria.Timeout,
			Log:     log.Named("anilibria"),
		}),
		Normalizer:      normalize.New(eff.PosterHost, eff.PlayerHost),
		TitleTTL:        eff.Cache.TitleTTL,
		NegativeTTL:     eff.Cache.NegativeTTL,
		PoolTTL:         eff.Cache.PoolTTL,
		CalendarTTL:     eff.Cache.CalendarTTL,
		TitleSize:       eff.Cache.TitleSize,
		PoolSize:        eff.PoolSize,
		PoolPages:       eff.PoolPages,
		CalendarBatch:   eff.CalendarBatch,
		CalendarWorkers: eff.CalendarWorkers,
		StateDir:        eff.Cache.StateDir,
		Log:             log.Named("resolve"),
		Observer:        obs,
	})
}

func serve(ctx context.Context, eff config.EffectiveConfig, svc *resolve.Service, log hclog.Logger) int {
	srv := &http.Server{
		Addr: eff.Listen,
		Handler: server.New(server.Options{
			Resolver:    svc,
			CORSOrigins: eff.CORSOrigins,
			Log:         log.Named("http"),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("服务已启动", "listen", eff.Listen, "config", eff.ConfigPath)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服务异常退出", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("优雅关闭超时", "error", err)
	}
	log.Info("服务已停止")
	return 0
}

type cliArgs struct {
	Command    string
	Positional []string

	ConfigPath string

	Listen    string
	ListenSet bool

	LogLevel    string
	LogLevelSet bool

	Limit     int
	KodikOnly bool
	Help      bool
}

// parseArgs 解析 "<command> [args] [flags]"；flag 可出现在任意位置。
func parseArgs(args []string) (cliArgs, error) {
	ca := cliArgs{}
	if len(args) == 0 {
		return ca, fmt.Errorf("缺少命令")
	}
	ca.Command = args[0]

	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 1; i < len(args); i++ {
		a := args[i]
		name, inline, hasInline := strings.Cut(a, "=")
		if !strings.HasPrefix(a, "-") {
			ca.Positional = append(ca.Positional, a)
			continue
		}
		get := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			return value(&i, name)
		}
		var err error
		switch name {
		case "-h", "--help":
			ca.Help = true
		case "--config":
			ca.ConfigPath, err = get()
		case "--listen":
			ca.Listen, err = get()
			ca.ListenSet = true
		case "--log-level":
			ca.LogLevel, err = get()
			ca.LogLevelSet = true
		case "--limit":
			var v string
			if v, err = get(); err == nil {
				ca.Limit, err = strconv.Atoi(v)
				if err != nil || ca.Limit < 1 {
					err = fmt.Errorf("--limit 必须是正整数，实际是 %q", v)
				}
			}
		case "--kodik-only":
			ca.KodikOnly = true
		default:
			err = fmt.Errorf("未知参数 %q", a)
		}
		if err != nil {
			return cliArgs{}, err
		}
	}
	if ca.Help {
		return ca, nil
	}

	switch ca.Command {
	case "serve", "calendar":
		if len(ca.Positional) > 0 {
			return cliArgs{}, fmt.Errorf("%s 不接受位置参数：%v", ca.Command, ca.Positional)
		}
	case "title", "video":
		if len(ca.Positional) != 1 || strings.TrimSpace(ca.Positional[0]) == "" {
			return cliArgs{}, fmt.Errorf("%s 需要且只需要一个 id", ca.Command)
		}
	case "pool":
		if len(ca.Positional) > 1 {
			return cliArgs{}, fmt.Errorf("pool 最多接受一个类型参数")
		}
		if _, err := domain.ParsePoolKind(firstOr(ca.Positional, "")); err != nil {
			return cliArgs{}, err
		}
	case "search":
		if len(ca.Positional) == 0 {
			return cliArgs{}, fmt.Errorf("search 需要标题")
		}
	default:
		return cliArgs{}, fmt.Errorf("未知命令 %q", ca.Command)
	}
	if ca.KodikOnly && ca.Command != "video" {
		return cliArgs{}, fmt.Errorf("--kodik-only 只能用于 video")
	}
	if ca.Limit != 0 && ca.Command != "pool" {
		return cliArgs{}, fmt.Errorf("--limit 只能用于 pool")
	}
	return ca, nil
}

func firstOr(xs []string, def string) string {
	if len(xs) > 0 {
		return xs[0]
	}
	return def
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  nekostream serve                          启动 HTTP 服务
  nekostream title <shikimori_id>           解析标题元数据与配音列表
  nekostream video <shikimori_id> [--kodik-only]
                                            汇总视频源（AniLibria + Kodik）
  nekostream pool [random|popular] [--limit N]
                                            从轮换池随机抽取
  nekostream calendar                       放送日历
  nekostream search <title>                 按标题检索配音

全局参数：
  --config <path>      配置文件（默认 ./nekostream.yaml，可缺省）
  --listen <addr>      监听地址（仅 serve）
  --log-level <level>  trace|debug|info|warn|error
  -h, --help           显示帮助

单次命令只向 stdout 输出一个 JSON；日志与进度写到 stderr。
`)
}

func emitJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}

func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temp-link/temp-link/internal/cache"
	"github.com/temp-link/temp-link/internal/config"
	"github.com/temp-link/temp-link/internal/download"
	"github.com/temp-link/temp-link/internal/logging"
	"github.com/temp-link/temp-link/internal/server"
	"github.com/temp-link/temp-link/internal/server/routes"
	"github.com/temp-link/temp-link/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["scratch_path"] = cfg.Global.ScratchPath
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := cache.NewStore(cfg.Global.ScratchPath, cfg.Global.MaxArtifactSize)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化暂存目录失败: %v\n", err)
		return 1
	}

	// 启动即清空暂存区，上一个进程遗留的工件一律作废。
	purged, err := store.Purge(context.Background())
	if err != nil {
		logger.WithFields(logrus.Fields{
			"action": "purge",
			"error":  err.Error(),
		}).Warn("scratch_purge_incomplete")
	}

	registry := cache.NewRegistry()
	httpClient := server.NewFetchClient(cfg)

	fetcher, err := download.NewFetcher(download.FetcherOptions{
		Client:         httpClient,
		Store:          store,
		Registry:       registry,
		Logger:         logger,
		MaxRetries:     cfg.Global.MaxFetchRetries,
		InitialBackoff: cfg.Global.InitialBackoff.DurationValue(),
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化抓取器失败: %v\n", err)
		return 1
	}

	ttl := cfg.Global.ArtifactTTL.DurationValue()
	handler := download.NewHandler(fetcher, store, registry, logger, ttl)
	sweeper := cache.NewSweeper(store, registry, logger, cfg.Global.SweepInterval.DurationValue(), ttl)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["scratch_path"] = cfg.Global.ScratchPath
	fields["purged"] = purged
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	serveErr := startHTTPServer(cfg, handler, registry, store, sweeper, logger)

	// 退出前再次清空暂存区，工件不跨进程存活。
	purged, purgeErr := store.Purge(context.Background())
	shutdownFields := logrus.Fields{
		"action": "shutdown",
		"purged": purged,
	}
	if purgeErr != nil {
		shutdownFields["error"] = purgeErr.Error()
		logger.WithFields(shutdownFields).Warn("scratch_purge_incomplete")
	} else {
		logger.WithFields(shutdownFields).Info("服务退出")
	}

	if serveErr != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", serveErr)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("temp-link", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 TEMP_LINK_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("TEMP_LINK_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startHTTPServer 同时托管 Fiber 服务与后台清扫循环，收到 SIGINT/SIGTERM
// 后先停止接收新请求，再结束清扫。
func startHTTPServer(cfg *config.Config, links server.LinkHandler, registry *cache.Registry, store cache.Store, sweeper *cache.Sweeper, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Links:      links,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, routes.StatusOptions{
		Registry:        registry,
		ScratchPath:     cfg.Global.ScratchPath,
		TTL:             cfg.Global.ArtifactTTL.DurationValue(),
		SweepInterval:   cfg.Global.SweepInterval.DurationValue(),
		MaxArtifactSize: cfg.Global.MaxArtifactSize,
		StartedAt:       time.Now(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		sweeper.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   port,
		}).Info("Fiber 服务启动")
		return app.Listen(fmt.Sprintf(":%d", port))
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return group.Wait()
}

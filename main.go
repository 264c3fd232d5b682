package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-edge/catalog-edge/internal/cache"
	"github.com/catalog-edge/catalog-edge/internal/config"
	"github.com/catalog-edge/catalog-edge/internal/fetch"
	"github.com/catalog-edge/catalog-edge/internal/flight"
	"github.com/catalog-edge/catalog-edge/internal/logging"
	"github.com/catalog-edge/catalog-edge/internal/readpath"
	"github.com/catalog-edge/catalog-edge/internal/retry"
	"github.com/catalog-edge/catalog-edge/internal/revalidate"
	"github.com/catalog-edge/catalog-edge/internal/server"
	"github.com/catalog-edge/catalog-edge/internal/server/routes"
	"github.com/catalog-edge/catalog-edge/internal/source"
	"github.com/catalog-edge/catalog-edge/internal/version"
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
		fields["store"] = cfg.Global.StoreBaseURL
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循"配置 → 文档存储客户端 → 缓存/在途表 → 抓取器 →
	// 后台刷新 → Fiber server"顺序，保证所有请求共享同一组实例。
	docs, err := source.NewHTTPStore(cfg.Global.StoreBaseURL, server.NewStoreClient(cfg))
	if err != nil {
		fmt.Fprintf(stdErr, "初始化文档存储客户端失败: %v\n", err)
		return 1
	}

	store := cache.NewStore(cache.Options{
		FreshTTL:   cfg.Global.FreshTTL.DurationValue(),
		StaleTTL:   cfg.Global.StaleTTL.DurationValue(),
		MaxEntries: cfg.Global.MaxEntries,
	})
	flights := flight.NewCoalescer()
	executor := retry.NewExecutor(cfg.Global.MaxRetries,
		cfg.Global.InitialBackoff.DurationValue(), cfg.Global.MaxBackoff.DurationValue())
	fetchers := fetch.NewRegistry(docs, executor, logger, fetch.Options{
		ReviewSampleSize: cfg.Global.ReviewSampleSize,
		RelatedLimit:     cfg.Global.RelatedLimit,
	})

	handler := readpath.NewHandler(logger, store, flights, fetchers, nil, cfg.Global.FetchTimeout.DurationValue())
	scheduler := revalidate.NewScheduler(flights, handler.Load, logger, cfg.Global.RevalidateWorkers)
	defer scheduler.Close()
	handler.SetRevalidator(scheduler)

	sweeper := startSweeper(cfg, store, logger)
	if sweeper != nil {
		defer sweeper.Stop()
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["store"] = cfg.Global.StoreBaseURL
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, handler, store, flights, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("catalog-edge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 CATALOG_EDGE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("CATALOG_EDGE_CONFIG")
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

// startSweeper 启动定时清扫任务，周期性移除超过 StaleTTL 的缓存条目。
func startSweeper(cfg *config.Config, store *cache.Store, logger *logrus.Logger) *cron.Cron {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.Global.SweepInterval.DurationValue())
	_, err := c.AddFunc(spec, func() {
		if removed := store.RemoveExpired(); removed > 0 {
			logger.WithFields(logrus.Fields{
				"action":  "cache_sweep",
				"removed": removed,
			}).Info("清扫过期缓存条目")
		}
	})
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_sweep",
			"spec":   spec,
		}).Warn("清扫任务注册失败")
		return nil
	}
	c.Start()
	return c
}

func startHTTPServer(cfg *config.Config, handler server.AggregateHandler, store *cache.Store, flights *flight.Coalescer, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Handler:    handler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, store, flights)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

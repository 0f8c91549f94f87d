package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/birdeye"
	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/cleaner"
	"github.com/utrading/utrading-sol-agent/internal/dal"
	"github.com/utrading/utrading-sol-agent/internal/dao"
	"github.com/utrading/utrading-sol-agent/internal/discovery"
	"github.com/utrading/utrading-sol-agent/internal/helius"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/internal/nats"
	"github.com/utrading/utrading-sol-agent/internal/orchestrator"
	"github.com/utrading/utrading-sol-agent/internal/processor"
	"github.com/utrading/utrading-sol-agent/internal/stream"
	"github.com/utrading/utrading-sol-agent/internal/webhook"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
	"github.com/utrading/utrading-sol-agent/pkg/sigproc"
)

func main() {
	var configFile, envFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	// 环境变量优先于配置文件
	if err := config.LoadEnv(envFile); err != nil {
		panic("load env file failed: " + err.Error())
	}
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("sol_agent service starting...")

	monitor.InitMetrics()

	// 初始化数据库
	dal.InitDB(cfg.Database)
	if err := dal.AutoMigrate(dal.DB()); err != nil {
		logger.Fatal().Err(err).Msg("auto migrate failed")
	}
	dao.InitDAO(dal.DB())

	heliusClient, err := helius.New(cfg.Helius)
	if err != nil {
		logger.Fatal().Err(err).Msg("init helius client failed")
	}
	board := birdeye.New(cfg.Birdeye)

	// 告警通道：Telegram + NATS，均可选
	notifiers := alert.Multi{}
	if tg := alert.NewTelegram(cfg.Telegram, cfg.Agent.Tier1MaxWallets); tg.Enabled() {
		notifiers = append(notifiers, tg)
	} else {
		logger.Warn().Msg("telegram not configured, alerts go to log only")
	}

	var publisherRef monitor.ConnRef
	var publisher *nats.Publisher
	if cfg.NATS.Endpoint != "" {
		publisher, err = nats.NewPublisher(cfg.NATS.Endpoint, cfg.NATS.Subject)
		if err != nil {
			logger.Fatal().Err(err).Msg("init nats publisher failed")
		}
		notifiers = append(notifiers, publisher)
		publisherRef = publisher
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crawler := discovery.NewCrawler(heliusClient, dao.Wallet(), dao.Edge(), board, cfg.Discovery, cfg.Agent.SeedWallets)
	if n, err := crawler.SeedWallets(ctx); err != nil {
		logger.Warn().Err(err).Msg("seed wallets failed")
	} else if n > 0 {
		logger.Info().Int("added", n).Msg("seed wallets added")
	}

	// 批量写入实时成交
	batchWriter := processor.NewBatchWriter(dao.Trade(), nil)
	batchWriter.Start()

	dataCleaner := cleaner.NewCleaner(dao.Health(), cfg.Retention)
	dataCleaner.Start()

	agentDeps := orchestrator.Deps{
		Wallets:   dao.Wallet(),
		Trades:    dao.Trade(),
		Health:    dao.Health(),
		History:   heliusClient,
		Webhooks:  heliusClient,
		Discovery: crawler,
		Notifier:  notifiers,
		Writer:    batchWriter,
		Funders:   botdetect.NewFunderBlocklist(cfg.Agent.FunderBlocklist...),
	}

	// agent 与 dispatcher 互相引用，先声明 handler
	var agent *orchestrator.Agent
	dispatcher, err := webhook.NewDispatcher(ctx, cfg.Agent.LivePoolSize, func(ctx context.Context, tx gjson.Result) {
		agent.HandleEvent(ctx, tx)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init webhook dispatcher failed")
	}

	var streamRef monitor.ConnRef
	var source *stream.Source
	if cfg.Stream.Enabled {
		source = stream.NewSource(stream.Options{
			URL:    cfg.Helius.WSURL,
			APIKey: cfg.Helius.APIKey,
		}, heliusClient, dispatcher)
		agentDeps.Live = address.NewSyncer(source)
		streamRef = source
	}

	agent = orchestrator.New(cfg, agentDeps)

	if source != nil {
		if err = source.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("start stream source failed")
		}
	}

	// 加载最近的成交签名到去重缓存（防止重启后重复告警）
	if err = agent.Dedup().LoadFromDB(ctx, dao.Trade()); err != nil {
		logger.Warn().Err(err).Msg("failed to load recent signatures to dedup cache")
	}

	healthServer := monitor.NewHealthServer(cfg.Server.Addr, publisherRef, streamRef, agent)
	healthServer.Handle(webhook.Path, webhook.NewReceiver(cfg.Server.WebhookSecret, dispatcher))
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	agentDone := make(chan struct{})
	goplus.GoNamed("agent", func() {
		defer close(agentDone)
		if err := agent.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("agent stopped with error")
		}
	})

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Bool("stream", cfg.Stream.Enabled).
		Int("notifiers", len(notifiers)).
		Msg("sol_agent service started successfully")

	// 优雅关闭
	stopped := make(chan struct{})
	sigproc.GracefulShutdown(func(sig os.Signal) {
		defer close(stopped)
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		// 停止各循环与新事件
		cancel()
		<-agentDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("stop health server failed")
		}

		if source != nil {
			_ = source.Close()
		}
		dispatcher.Release()

		dataCleaner.Stop()

		// 先落库再关库
		if err := batchWriter.GracefulShutdown(10 * time.Second); err != nil {
			logger.Warn().Err(err).Msg("batch writer shutdown incomplete")
		}

		if publisher != nil {
			_ = publisher.Close()
		}

		config.Stop()
		dal.Close()

		logger.Info().Msg("sol_agent service stopped")
	})

	<-stopped
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		EnableJSON(cfg.Logger.JSON).
		Build()
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ledgerpolice.dipix.pw/internal/config"
	"ledgerpolice.dipix.pw/internal/ledger"
	"ledgerpolice.dipix.pw/internal/notify"
	"ledgerpolice.dipix.pw/internal/police"
	"ledgerpolice.dipix.pw/internal/transport/admin"
	"ledgerpolice.dipix.pw/internal/transport/ws"
	"ledgerpolice.dipix.pw/internal/world"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configPath  = flag.String("config", "./configs/ledgerpolice.yaml", "config file path")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		extraWorlds = flag.String("worlds", "", "comma separated worlds to load besides the default world")
		watchConfig = flag.Bool("watch_config", true, "reload the config file when it changes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	live := config.NewLive(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	if *watchConfig {
		rl, err := config.NewReloader(*configPath, live, logger)
		if err != nil {
			logger.Fatalf("watch config: %v", err)
		}
		go func() {
			if err := rl.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("config watcher stopped: %v", err)
			}
		}()
	}

	archiveRT, err := buildArchiveRuntime(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init archive: %v", err)
	}
	defer archiveRT.Close()

	store, err := openLedger(*dataDir, cfg.Ledger.PageSize, logger)
	if err != nil {
		logger.Fatalf("open ledger backend: %v", err)
	}
	defer store.Close()

	auditLog := ledger.NewAuditLog(*dataDir, ledger.WriterOptions{
		RotateLayout: archiveRT.rotateLayout,
		OnRotate:     archiveRT.Enqueue,
	})
	defer auditLog.Close()

	worlds := world.NewWorlds(auditFanout{log: auditLog, ledger: store})
	worlds.GetOrCreate(cfg.Server.DefaultWorld)
	for _, id := range strings.Split(*extraWorlds, ",") {
		if id = strings.TrimSpace(id); id != "" {
			worlds.GetOrCreate(id)
		}
	}

	opts := police.Options{Logger: logger}
	var publisher *notify.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		opts.Recorder = publisher
		logger.Printf("publishing lookups to kafka topic=%s brokers=%s", cfg.Kafka.Topic, strings.Join(cfg.Kafka.Brokers, ","))
	}

	svc := police.NewService(police.NewRegistry(), worlds, store, live, opts)
	defer svc.Wait()
	worlds.Register(police.NewListener(svc))

	wsSrv := ws.NewServer(svc, worlds, live, logger)

	enableAdmin := envBool("LP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdmin {
		logger.Printf("admin endpoints disabled (LP_ENABLE_ADMIN_HTTP=false)")
	}
	deps := admin.Deps{
		Police:      svc,
		Ledger:      store,
		Notify:      publisher,
		Sessions:    wsSrv.Sessions,
		EnableAdmin: enableAdmin,
	}
	if archiveRT.enabled {
		deps.Archive = archiveRT.mirror
	}
	router := admin.NewRouter(deps)
	router.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if n := worlds.AuditErrors(); n > 0 {
		logger.Printf("audit sink refused %d block changes", n)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

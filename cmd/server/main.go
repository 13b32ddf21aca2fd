package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/clarus-app/clarus-web/internal/api"
	"github.com/clarus-app/clarus-web/internal/billing"
	"github.com/clarus-app/clarus-web/internal/cfg"
	"github.com/clarus-app/clarus-web/internal/content"
	"github.com/clarus-app/clarus-web/internal/contenthttp"
	"github.com/clarus-app/clarus-web/internal/cryptoutil"
	"github.com/clarus-app/clarus-web/internal/httpmw"
	"github.com/clarus-app/clarus-web/internal/httpserver"
	"github.com/clarus-app/clarus-web/internal/log"
	"github.com/clarus-app/clarus-web/internal/metrics"
	"github.com/clarus-app/clarus-web/internal/opshttp"
	"github.com/clarus-app/clarus-web/internal/otelx"
	"github.com/clarus-app/clarus-web/internal/probe"
	"github.com/clarus-app/clarus-web/internal/prof"
	"github.com/clarus-app/clarus-web/internal/ratelimit"
	"github.com/clarus-app/clarus-web/internal/scrape"
	"github.com/clarus-app/clarus-web/internal/sitehandler"
	"github.com/clarus-app/clarus-web/internal/store"
	v "github.com/clarus-app/clarus-web/internal/version"
	"github.com/clarus-app/clarus-web/internal/webassets"

	"github.com/go-chi/chi/v5"
)

const appName = "clarus-web"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			appName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "CLARUS_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               appName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		MaxErrorLinks:     conf.MaxErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for the slog backend, but kept so a buffered backend can flush
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"trusted_hops", conf.TrustedHops,
		"enable_rate_limits", conf.EnableRateLimits,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_content_updates", conf.EnableContentUpdates,
		"db_path", conf.DBPath,
		"content_ssm_param", conf.ContentSSMParam,
		"content_s3_bucket", conf.ContentS3Bucket,
		"content_s3_prefix", conf.ContentS3Prefix,
		"content_signing_key_arn", conf.ContentSigningKeyARN,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Insecure because the collector is a localhost sidecar.
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   appName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	db, err := store.Open(ctx, conf.DBPath, store.WithObserver(m.ObserveStoreQuery))
	if err != nil {
		L.Error(ctx, err, "failed to open database", "db_path", conf.DBPath)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		L.Error(ctx, err, "database migration failed")
		os.Exit(1)
	}
	L.Info(ctx, "database ready", "db_path", conf.DBPath)

	scraper := scrape.New(
		scrape.WithTimeout(conf.ScrapeTimeout),
		scrape.WithObserver(m.ObserveScrape),
	)

	billingClient := billing.NewHTTPClient(
		conf.BillingPortalURL,
		conf.BillingAPIKey,
		billing.WithObserver(m.IncBillingSession),
	)
	if conf.BillingPortalURL == "" {
		L.Warn(ctx, "billing portal endpoint not configured, portal sessions will return 503")
	}

	limiter := ratelimit.New(
		ratelimit.WithOnDenied(func(key string) {
			m.IncRateLimitDenied(endpointOf(key))
		}),
		// fires once per key per window instead of once per rejected
		// request, so the log and the exhausted-keys counter track
		// offenders rather than raw rejection volume
		ratelimit.WithOnFirstDenied(func(key string) {
			m.IncRateLimitKeyExhausted()
			L.Warn(ctx, "rate limit triggered", "key", key)
		}),
	)
	m.RegisterRateLimitKeys(func() float64 { return float64(limiter.Len()) })

	// content starts from the embedded seed so the server is useful before
	// (or without) the first bundle download
	contentMgr := content.NewManager()
	if seedFS, ok := webassets.SeedSiteFS(); ok {
		contentMgr.Set(content.Snapshot{
			FS: seedFS,
			Meta: content.Meta{
				Source:  content.SourceSeed,
				Version: "embedded-seed",
			},
		})
		L.Info(ctx, "serving embedded seed content")
	} else {
		L.Warn(ctx, "no embedded seed content, serving maintenance page until a bundle loads")
	}

	if conf.EnableContentUpdates {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config, content updates disabled")
		} else {
			startContentPipeline(ctx, L, m, conf, awsCfg, contentMgr)
		}
	}
	m.SetContentSource(string(contentMgr.Source()))
	m.SetContentBundle(contentMgr.ContentHash())
	if t := contentMgr.LoadedAt(); !t.IsZero() {
		m.SetContentLoadedTimestamp(t)
	}

	apiHandler := api.New(api.Options{
		Logger:            L,
		Limiter:           limiter,
		Store:             db,
		Scraper:           scraper,
		Billing:           billingClient,
		CORS:              httpmw.CORSOptions{AllowedOrigins: cfg.SplitOrigins(conf.CORSOrigins)},
		DisableRateLimits: !conf.EnableRateLimits,
	})
	contentAPI := contenthttp.NewAPI(contentMgr, L)

	siteHandler, err := sitehandler.New(&sitehandler.Options{
		Logger:     L,
		Content:    contentMgr,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	var gate probe.ShutdownGate
	readiness := probe.Multi(
		gate.Probe(),
		probe.Func(func(context.Context) error { return contentMgr.ReadyErr() }),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Health:       probe.Static(true, ""),
		Readiness:    readiness,
		APIRoutes: func(r chi.Router) {
			apiHandler.Routes(r)
			contentAPI.RegisterRoutes(r)
		},
		SiteHandler: siteHandler,
		ContentInfo: contentMgr,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// admin listener is firewalled to monitoring infra; middleware there
	// additionally rejects forwarded requests in case the LB misroutes
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      probe.Static(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		// worst case systemd kills us after its own timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	// fail readiness first so the load balancer stops sending traffic, then
	// give in-flight requests and health-check intervals time to settle
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(30 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// startContentPipeline loads the current bundle and launches the polling
// watcher. Failures here are never fatal: the seed (or the last good
// snapshot) keeps serving.
func startContentPipeline(
	ctx context.Context,
	L log.Logger,
	m *metrics.ServerMetrics,
	conf cfg.App,
	awsCfg aws.Config,
	contentMgr *content.Manager,
) {
	var verifier content.SignatureVerifier
	if conf.ContentSigningKeyARN != "" {
		verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.ContentSigningKeyARN)
		L.Info(ctx, "content signature verification enabled", "key_arn", conf.ContentSigningKeyARN)
	}

	loader, err := content.NewLoader(ctx, content.LoaderOptions{
		Logger:    L,
		SSMParam:  conf.ContentSSMParam,
		S3Bucket:  conf.ContentS3Bucket,
		S3Prefix:  conf.ContentS3Prefix,
		Verifier:  verifier,
		AWSConfig: &awsCfg,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create content loader, content updates disabled")
		return
	}

	if err := loader.LoadIntoManager(ctx, contentMgr); err != nil {
		L.Error(ctx, err, "failed to load content bundle, keeping seed content")
	} else {
		L.Info(ctx, "loaded content bundle",
			"content_version", contentMgr.ContentVersion(),
			"content_hash", contentMgr.ContentHash(),
		)
	}

	watcher := content.NewWatcher(&content.WatcherOptions{
		Logger:  L,
		Loader:  loader,
		Manager: contentMgr,
		Metrics: m,
		OnSwap: func(hash, version string) {
			m.SetContentBundle(hash)
			m.SetContentSource(string(content.SourceBundle))
			m.SetContentLoadedTimestamp(time.Now())
		},
	})
	go func() { _ = watcher.Run(ctx) }()
}

// endpointOf recovers the endpoint label from a limiter key of the form
// "endpoint:clientIP", keeping raw client IPs out of metric labels.
func endpointOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit is Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	_, _ = conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/tylerearls/folio/pkg/captcha"
	"github.com/tylerearls/folio/pkg/config"
	"github.com/tylerearls/folio/pkg/contact"
	"github.com/tylerearls/folio/pkg/domain"
	folioflags "github.com/tylerearls/folio/pkg/flags"
	"github.com/tylerearls/folio/pkg/mailer"
	"github.com/tylerearls/folio/pkg/ratelimit"
	"github.com/tylerearls/folio/pkg/repository"
	"github.com/tylerearls/folio/pkg/scheduler"
	"github.com/tylerearls/folio/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"configuration file"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

// sweepInterval is how often expired keys are removed from the store
const sweepInterval = time.Minute

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	SetupLog(opts.Debug)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		lgr.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	lgr.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	// re-setup logging with secrets from config masked
	SetupLog(opts.Debug, cfg.Secrets()...)
	lgr.Printf("[INFO] starting folio version %s", revision)

	kv, err := repository.NewKV(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			lgr.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	pipeline, err := makeContactPipeline(cfg, kv)
	if err != nil {
		return fmt.Errorf("failed to make contact pipeline: %w", err)
	}

	srv := server.New(cfg, server.Deps{
		Flags:        folioflags.NewService(kv),
		FlagsLimiter: &ratelimit.FixedCounter{Store: kv, Max: cfg.Flags.RateLimit.Max, Window: cfg.Flags.RateLimit.Window},
		Contact:      pipeline,
	}, revision, opts.Debug)

	sched := scheduler.NewScheduler(kv, scheduler.Config{SweepInterval: sweepInterval})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		sched.Start(gctx)
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	return g.Wait()
}

func makeContactPipeline(cfg *config.Config, kv *repository.KVRepository) (*contact.Pipeline, error) {
	var limiter contact.Limiter
	if !cfg.Contact.DisableRateLimit {
		limiter = &ratelimit.SlidingWindow{Store: kv, Max: cfg.Contact.RateLimit.Max, Window: cfg.Contact.RateLimit.Window}
	}
	return contact.NewPipeline(contact.Config{
		Limiter:        limiter,
		Verifier:       captcha.NewTurnstile(cfg.Contact.TurnstileURL, cfg.Contact.TurnstileSecret, cfg.Contact.UpstreamTimeout),
		Sender:         mailer.NewPostmark(cfg.Contact.PostmarkURL, cfg.Contact.PostmarkToken, cfg.Contact.UpstreamTimeout),
		From:           cfg.Contact.FromAddress,
		Recipient:      cfg.Contact.RecipientEmail,
		AllowUnlimited: cfg.Contact.DisableRateLimit,

		RateCheckPolicy: domain.ContactRateCheckPolicy,
		SendPolicy:      domain.ContactSendPolicy,
	})
}

// SetupLog configures lgr and the std logger, secrets are masked in the output
func SetupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

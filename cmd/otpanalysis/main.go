package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otp-analysis/internal/analysis"
	"github.com/otp-analysis/internal/common/config"
	"github.com/otp-analysis/internal/common/discord"
	"github.com/otp-analysis/internal/common/logger"
	"github.com/otp-analysis/internal/common/metrics"
	"github.com/otp-analysis/internal/common/publisher"
	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/internal/otp"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: otpanalysis <job.yaml>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		os.Exit(1)
	}
}

func run(jobPath string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration: "+err.Error())
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Logging.Level)
	logCfg.FilePath = cfg.Logging.FilePath
	log := logger.NewFromConfig(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	if cfg.Metrics.Addr != "" {
		srv := collector.Serve(cfg.Metrics.Addr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	job, err := analysis.LoadJob(jobPath)
	if err != nil {
		log.Error("Failed to load job", "path", jobPath, "error", err)
		return err
	}

	log.Info("OTP analysis starting",
		"job", job.DisplayName(),
		"kind", job.Kind,
		"otp_url", cfg.OTP.BaseURL,
		"router", cfg.OTP.Router,
		"workers", cfg.ODMatrix.Workers,
	)

	progress := analysis.MultiReporter{analysis.NewLogReporter(log)}
	if cfg.NATS.URL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATS.URL, collector, log)
		if err != nil {
			log.Warn("Progress publishing disabled", "error", err)
		} else {
			defer pub.Close()
			subject := publisher.Subject(cfg.NATS.SubjectPrefix, "progress", job.DisplayName())
			progress = append(progress, analysis.NewPublishReporter(pub, subject, log))
			log.Info("Publishing progress", "subject", subject)
		}
	}

	client, err := otp.NewClient(otp.Options{
		BaseURL:       cfg.OTP.BaseURL,
		Router:        cfg.OTP.Router,
		Timeout:       cfg.OTP.Timeout,
		PlanCacheSize: cfg.OTP.PlanCacheSize,
		PlanCacheTTL:  cfg.OTP.PlanCacheTTL,
		Metrics:       collector,
	}, log)
	if err != nil {
		log.Error("Failed to create OTP client", "error", err)
		return err
	}

	runner := analysis.NewRunner(client, analysis.Options{
		Workers:       cfg.ODMatrix.Workers,
		PairTimeout:   cfg.ODMatrix.PairTimeout,
		BufferDegrees: cfg.ODMatrix.BufferDegrees,
		Progress:      progress,
		Metrics:       collector,
	}, log)

	out, err := runner.Run(ctx, job)
	if err == nil {
		output := job.Resolve(job.Output)
		if err = geo.WriteFeatureCollection(output, out.Features); err == nil {
			log.Info("Output written", "path", output, "summary", out.Summary())
		}
	}
	if err != nil {
		log.Error("Job failed", "job", job.DisplayName(), "error", err)
	}

	notify(cfg.Discord.WebhookURL, job, out, err, log)
	return err
}

// notify posts the run summary to Discord when a webhook is configured.
func notify(webhookURL string, job *analysis.Job, out *analysis.Outcome, runErr error, log logger.Logger) {
	dc := discord.NewClient(webhookURL)
	if !dc.Enabled() {
		return
	}

	s := discord.RunSummary{Job: job.DisplayName(), Kind: string(job.Kind), Err: runErr}
	if out != nil {
		s.RunID = out.RunID
		s.Records = out.Records
		s.Failures = len(out.Failures)
		s.Elapsed = out.Elapsed
	}

	// The run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := dc.SendRunSummary(ctx, s); err != nil {
		log.Warn("Failed to send Discord summary", "error", err)
	}
}

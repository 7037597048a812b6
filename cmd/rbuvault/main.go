// Command rbuvault drives encode, decode, and validate operations against
// a backup container from the shell, in the same flag.FlagSet-per-run,
// logrus-for-output style as the teacher's loadtest runner.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/rbuvault/internal/audit"
	"github.com/kenneth/rbuvault/internal/blobstore/fsstore"
	"github.com/kenneth/rbuvault/internal/blobstore/s3store"
	"github.com/kenneth/rbuvault/internal/config"
	"github.com/kenneth/rbuvault/internal/cryptoprim"
	"github.com/kenneth/rbuvault/internal/decoder"
	"github.com/kenneth/rbuvault/internal/encoder"
	"github.com/kenneth/rbuvault/internal/metrics"
	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/ports"
	"github.com/kenneth/rbuvault/internal/progress"
	"github.com/kenneth/rbuvault/internal/ratelimit"
	"github.com/kenneth/rbuvault/internal/restore"
	"github.com/kenneth/rbuvault/internal/snapshot"
	"github.com/kenneth/rbuvault/internal/sqlport"
	"github.com/kenneth/rbuvault/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(logger, os.Args[2:])
	case "decode":
		err = runDecode(logger, os.Args[2:])
	case "validate":
		err = runValidate(logger, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rbuvault <encode|decode|validate> [flags]")
}

// setupContext returns a context cancelled on SIGINT/SIGTERM, the same
// graceful-shutdown pattern the teacher's loadtest main uses around its
// managed MinIO/Garage processes.
func setupContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loggingProgressSink(logger *logrus.Logger) progress.Sink {
	return progress.SinkFunc(func(e progress.Event) {
		entry := logger.WithFields(logrus.Fields{
			"phase":   e.Phase,
			"current": e.Current,
			"total":   e.Total,
		})
		if e.CurrentItem != "" {
			entry = entry.WithField("item", e.CurrentItem)
		}
		entry.Info("progress")
	})
}

func openBlobStore(ctx context.Context, cfg config.BackendConfig) (ports.BlobStore, error) {
	switch cfg.Type {
	case "", "local":
		return fsstore.New(cfg.LocalDir)
	case "s3":
		return s3store.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

// openLimiter builds a ratelimit.Limiter from cfg.RateLimit, or nil if
// rate limiting is disabled. identity (the container path) is never the
// password — only a bound on how many guesses that container gets.
func openLimiter(cfg config.RateLimitConfig) *ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return ratelimit.New(client, cfg.MaxAttempts, time.Duration(cfg.WindowSeconds)*time.Second)
}

func setupTelemetryAndMetrics(ctx context.Context, logger *logrus.Logger, cfg config.Config, checks ...metrics.DependencyCheck) (telemetry.Shutdown, *metrics.Metrics) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		UseStdout:    cfg.Telemetry.UseStdout,
	})
	if err != nil {
		logger.WithError(err).Warn("telemetry setup failed, continuing without tracing")
		shutdown = func(context.Context) error { return nil }
	}

	m := metrics.NewMetrics()
	accel := cryptoprim.HasAESHardwareSupport()
	m.SetHardwareAccelerationStatus("aes-ni", accel)
	logger.WithField("aes_hardware_support", accel).Debug("hardware acceleration detected")

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.HandleFunc("/healthz", metrics.HealthHandler())
		mux.HandleFunc("/livez", metrics.LivenessHandler())
		mux.HandleFunc("/readyz", metrics.ReadinessHandler(checks...))
		srv := &http.Server{Addr: cfg.Metrics.BindAddr, Handler: mux}
		go func() {
			logger.WithField("addr", cfg.Metrics.BindAddr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
	}
	return shutdown, m
}

func runEncode(logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the sqlite database to snapshot")
	password := fs.String("password", "", "container password")
	outPath := fs.String("out", "backup.rbu", "output container path")
	configPath := fs.String("config", "", "path to a YAML config file")
	parallel := fs.Bool("parallel", true, "read and frame blobs concurrently")
	instanceName := fs.String("instance-name", "", "instance name recorded in the manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *password == "" {
		return fmt.Errorf("encode: --db and --password are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := setupContext()
	defer cancel()

	blobs, err := openBlobStore(ctx, cfg.Backend)
	if err != nil {
		return err
	}

	shutdown, m := setupTelemetryAndMetrics(ctx, logger, cfg,
		metrics.DependencyCheck{Name: "blobstore", Check: func(ctx context.Context) error {
			_, err := blobs.Exists(ctx, "")
			return err
		}},
	)
	defer shutdown(context.Background())

	auditLogger, err := audit.NewLoggerFromConfig(cfg.Audit)
	if err != nil {
		return err
	}

	db, err := sqlport.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, span := telemetry.StartOperation(ctx, "encode")
	defer span.End()
	start := time.Now()

	database, err := snapshot.Build(ctx, db)
	if err != nil {
		m.RecordOperation(ctx, "encode", err, "")
		return err
	}

	blobRefs, err := snapshot.EnumerateBlobs(ctx, db)
	if err != nil {
		m.RecordOperation(ctx, "encode", err, "")
		return err
	}

	manifest := model.Manifest{
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Platform:      "cli",
		AppVersion:    "rbuvault",
		FormatVersion: 1,
		BlobCount:     len(blobRefs),
		InstanceName:  *instanceName,
	}
	for _, b := range blobRefs {
		manifest.BlobTotalSize += b.Size
	}

	input := encoder.Input{
		Password: *password,
		Manifest: manifest,
		Database: database,
		Blobs:    blobRefs,
		ReadBlob: blobs.Retrieve,
		Progress: loggingProgressSink(logger),
	}

	var out []byte
	if *parallel {
		out, err = encoder.EncodeParallel(ctx, input)
	} else {
		out, err = encoder.Encode(ctx, input)
	}
	if err != nil {
		m.RecordOperation(ctx, "encode", err, "")
		auditLogger.LogEncode(*outPath, manifest.FormatVersion, 0, false, err, time.Since(start), nil)
		return err
	}

	if err := os.WriteFile(*outPath, out, 0o600); err != nil {
		return fmt.Errorf("writing container to %q: %w", *outPath, err)
	}

	m.RecordOperation(ctx, "encode", nil, "")
	m.RecordPhase(ctx, "encode", "total", time.Since(start))
	auditLogger.LogEncode(*outPath, manifest.FormatVersion, 2+len(blobRefs), true, nil, time.Since(start), nil)

	logger.WithFields(logrus.Fields{
		"out":   *outPath,
		"bytes": len(out),
		"took":  time.Since(start),
	}).Info("encode complete")
	return nil
}

func runDecode(logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	inPath := fs.String("in", "", "container path to decode")
	password := fs.String("password", "", "container password")
	dbPath := fs.String("db", "", "path to the sqlite database to restore into")
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *password == "" || *dbPath == "" {
		return fmt.Errorf("decode: --in, --password, and --db are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := setupContext()
	defer cancel()

	blobs, err := openBlobStore(ctx, cfg.Backend)
	if err != nil {
		return err
	}

	limiter := openLimiter(cfg.RateLimit)

	checks := []metrics.DependencyCheck{
		{Name: "blobstore", Check: func(ctx context.Context) error {
			_, err := blobs.Exists(ctx, "")
			return err
		}},
	}
	if limiter != nil {
		checks = append(checks, metrics.DependencyCheck{Name: "ratelimit", Check: limiter.Ping})
	}
	shutdown, m := setupTelemetryAndMetrics(ctx, logger, cfg, checks...)
	defer shutdown(context.Background())

	auditLogger, err := audit.NewLoggerFromConfig(cfg.Audit)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("reading container %q: %w", *inPath, err)
	}

	if limiter != nil {
		allowed, err := limiter.Allow(ctx, *inPath)
		if err != nil {
			return fmt.Errorf("checking decode attempt limit: %w", err)
		}
		if !allowed {
			return fmt.Errorf("decode: too many password attempts for %q, try again later", *inPath)
		}
	}

	ctx, span := telemetry.StartOperation(ctx, "decode")
	defer span.End()
	start := time.Now()

	out, err := decoder.Decode(ctx, decoder.Input{
		Bytes:    data,
		Password: *password,
		Progress: loggingProgressSink(logger),
	})
	if err != nil {
		m.RecordOperation(ctx, "decode", err, "")
		auditLogger.LogDecode(*inPath, 0, 0, false, err, time.Since(start), nil)
		return err
	}

	if limiter != nil {
		if err := limiter.Reset(ctx, *inPath); err != nil {
			logger.WithError(err).Warn("failed to reset decode attempt counter")
		}
	}

	db, err := sqlport.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, t := range out.Database.Tables {
		if _, err := db.Execute(ctx, t.SQL); err != nil {
			return fmt.Errorf("applying schema for table %q: %w", t.Name, err)
		}
	}
	for _, ix := range out.Database.Indexes {
		if _, err := db.Execute(ctx, ix.SQL); err != nil {
			return fmt.Errorf("applying schema for index %q: %w", ix.Name, err)
		}
	}

	restorer := restore.NewRestorer(db, blobs, logger)
	if err := restorer.Run(ctx, restore.Input{Database: out.Database, Blobs: out.Blobs}); err != nil {
		m.RecordOperation(ctx, "decode", err, "")
		return err
	}

	m.RecordOperation(ctx, "decode", nil, "")
	m.RecordPhase(ctx, "decode", "total", time.Since(start))
	auditLogger.LogDecode(*inPath, out.Manifest.FormatVersion, 2+len(out.Blobs), true, nil, time.Since(start), nil)

	logger.WithFields(logrus.Fields{
		"manifest_instance": out.Manifest.InstanceName,
		"tables":            len(out.Database.Tables),
		"blobs":             len(out.Blobs),
		"took":              time.Since(start),
	}).Info("decode complete")
	return nil
}

func runValidate(logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	inPath := fs.String("in", "", "container path to validate")
	password := fs.String("password", "", "container password")
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *password == "" {
		return fmt.Errorf("validate: --in and --password are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	limiter := openLimiter(cfg.RateLimit)
	if limiter != nil {
		allowed, err := limiter.Allow(ctx, *inPath)
		if err != nil {
			return fmt.Errorf("checking validate attempt limit: %w", err)
		}
		if !allowed {
			return fmt.Errorf("validate: too many password attempts for %q, try again later", *inPath)
		}
	}

	data, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("reading container %q: %w", *inPath, err)
	}

	result := decoder.QuickValidate(*password, data)
	if !result.Valid {
		logger.WithError(result.Reason).Error("container validation failed")
		return result.Reason
	}

	if limiter != nil {
		if err := limiter.Reset(ctx, *inPath); err != nil {
			logger.WithError(err).Warn("failed to reset validate attempt counter")
		}
	}

	manifestJSON, _ := json.MarshalIndent(result.Manifest, "", "  ")
	fmt.Println(string(manifestJSON))
	return nil
}

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/caseline/pkg/batch"
	"github.com/logflow/caseline/pkg/cache"
	"github.com/logflow/caseline/pkg/config"
	"github.com/logflow/caseline/pkg/parser"
	"github.com/logflow/caseline/pkg/source"
	"github.com/logflow/caseline/pkg/storage/s3"
	"github.com/logflow/caseline/pkg/telemetry"
	"github.com/logflow/caseline/pkg/timeline"
)

// app holds what every command needs after setup.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	shutdown func(context.Context) error
}

// newApp loads configuration, applies flag overrides and starts tracing.
func newApp(cmd *cobra.Command) (*app, error) {
	m := config.NewManager()
	if err := m.Load(configFile); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := m.Get()
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger.SetOutput(os.Stderr)
		for _, p := range m.GetPaths() {
			logger.Printf("INFO: loaded config %s", p)
		}
	}

	otlp := telemetry.DefaultOTLPConfig(cfg.Telemetry.ServiceName)
	otlp.Enabled = cfg.Telemetry.Enabled
	otlp.Endpoint = cfg.Telemetry.Endpoint
	otlp.InsecureTLS = cfg.Telemetry.Insecure
	otlp.SamplingRatio = cfg.Telemetry.SampleRate
	otlp.ServiceVersion = version

	exporter := telemetry.NewOTLPExporter(otlp)
	shutdown, err := exporter.Init(cmd.Context())
	if err != nil {
		logger.Printf("WARN: tracing disabled: %v", err)
		shutdown = func(context.Context) error { return nil }
	}
	if exporter.IsInitialized() {
		logger.Printf("INFO: exporting traces to %s", otlp.Endpoint)
	}

	return &app{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Printf("WARN: flush traces: %v", err)
	}
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}

	set("engine", &cfg.Source.Engine, engineFlag)
	set("format", &cfg.Source.Format, formatFlag)
	set("case-column", &cfg.Source.CaseColumn, caseColumn)
	set("activity-column", &cfg.Source.ActivityColumn, activityColumn)
	set("transition-column", &cfg.Source.TransitionColumn, transitionColumn)
	set("timestamp-column", &cfg.Source.TimestampColumn, timestampColumn)
	set("resource-column", &cfg.Source.ResourceColumn, resourceColumn)
	set("timestamp-format", &cfg.Source.TimestampFormat, timestampFormat)
	set("delimiter", &cfg.Source.Delimiter, delimiter)
	set("compression", &cfg.Export.Compression, compression)

	if flags.Changed("workers") {
		cfg.Batch.Workers = workers
	}
	if flags.Changed("fail-fast") {
		cfg.Batch.FailFast = failFast
	}
	if flags.Changed("case-timeout") {
		d, err := time.ParseDuration(caseTimeout)
		if err != nil {
			return fmt.Errorf("invalid --case-timeout %q: %w", caseTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid --case-timeout %q: must not be negative", caseTimeout)
		}
		cfg.Batch.CaseTimeout = d
	}
	if flags.Changed("no-cache") && noCache {
		cfg.Cache.Enabled = false
	}
	return nil
}

func (a *app) sourceConfig() (source.Config, error) {
	engine, err := source.ParseEngine(a.cfg.Source.Engine)
	if err != nil {
		return source.Config{}, err
	}

	pc := parser.DefaultConfig()
	pc.CaseIDColumn = a.cfg.Source.CaseColumn
	pc.ActivityColumn = a.cfg.Source.ActivityColumn
	pc.TransitionColumn = a.cfg.Source.TransitionColumn
	pc.TimestampColumn = a.cfg.Source.TimestampColumn
	pc.ResourceColumn = a.cfg.Source.ResourceColumn
	pc.TimestampFormat = a.cfg.Source.TimestampFormat
	if d := a.cfg.Source.Delimiter; d != "" {
		if d == `\t` {
			d = "\t"
		}
		pc.Delimiter = d[0]
	}
	pc.OnSkip = func(row int, reason string) {
		a.logger.Printf("WARN: row %d skipped: %s", row, reason)
	}

	return source.Config{
		Engine: engine,
		Format: a.cfg.Source.Format,
		Parser: pc,
		S3:     a.s3Config(),
	}, nil
}

func (a *app) s3Config() s3.Config {
	sc := s3.DefaultConfig(a.cfg.S3.Region)
	sc.Endpoint = a.cfg.S3.Endpoint
	sc.UsePathStyle = a.cfg.S3.UsePathStyle
	sc.AccessKeyID = a.cfg.S3.AccessKeyID
	sc.SecretAccessKey = a.cfg.S3.SecretAccessKey
	return sc
}

// openSource opens location and returns it with the version of the log
// taken before reading, so an edit during the load never matches new
// content to the old version.
func (a *app) openSource(ctx context.Context, location string) (source.Source, string, error) {
	sc, err := a.sourceConfig()
	if err != nil {
		return nil, "", err
	}

	version, err := source.Version(ctx, sc, location)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	src, err := source.Open(ctx, sc, location)
	if err != nil {
		return nil, "", err
	}
	a.logger.Printf("INFO: opened %s (version %s) with %s engine in %s",
		location, version, sc.Engine, time.Since(start).Round(time.Millisecond))
	return src, version, nil
}

// computer builds the timeline engine over src, wrapped by the result
// cache when enabled. Cached entries are scoped to location at version.
// The returned closer releases the cache.
func (a *app) computer(ctx context.Context, src timeline.EventSource, location, version string) (timeline.Computer, *cache.Engine, func(), error) {
	engine := timeline.NewEngine(src)
	if !a.cfg.Cache.Enabled {
		return engine, nil, func() {}, nil
	}

	var rc cache.ResultCache
	switch a.cfg.Cache.Backend {
	case "redis":
		rcfg := cache.DefaultRedisConfig(a.cfg.Cache.Address)
		rcfg.Password = a.cfg.Cache.Password
		rcfg.Database = a.cfg.Cache.Database
		rcfg.Prefix = a.cfg.Cache.Prefix
		rcfg.TTL = a.cfg.Cache.TTL
		redisCache, err := cache.NewRedisCache(ctx, rcfg)
		if err != nil {
			a.logger.Printf("WARN: result cache disabled: %v", err)
			return engine, nil, func() {}, nil
		}
		rc = redisCache
	case "memory", "":
		mc := cache.NewMemoryCache(a.cfg.Cache.MaxEntries, a.cfg.Cache.TTL)
		cached := cache.NewEngine(engine, mc, cache.Namespace(location, version), a.logger)
		release := func() {
			st := mc.Stats()
			a.logger.Printf("INFO: result cache: %d entries, %d hits, %d misses (%.0f%% hit rate)",
				st.Entries, st.Hits, st.Misses, st.HitRate*100)
			mc.Close()
		}
		return cached, cached, release, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}

	cached := cache.NewEngine(engine, rc, cache.Namespace(location, version), a.logger)
	return cached, cached, func() { rc.Close() }, nil
}

func (a *app) batchConfig() batch.Config {
	bc := batch.DefaultConfig()
	if a.cfg.Batch.Workers > 0 {
		bc.Workers = a.cfg.Batch.Workers
	}
	bc.CaseTimeout = a.cfg.Batch.CaseTimeout
	bc.FailFast = a.cfg.Batch.FailFast
	return bc
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// readCaseList reads case IDs from a one-column CSV; a case_id header is skipped.
func readCaseList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read case list: %w", err)
	}

	ids := make([]string, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(rec[0])
		if id == "" || (i == 0 && id == "case_id") {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

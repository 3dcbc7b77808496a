// Command evaltool runs one catalog selection and assembly: it loads or
// fetches the CORDEX-CMIP6 catalog, selects the requested variables and
// frequency, opens and merges the files of every surviving model run, and
// writes the verified datasets as NetCDF files.
//
// Usage:
//
//	evaltool -variables tas,pr -frequency mon -merge-fx -apply-fixes -out ./merged
//
// Configuration beyond the selection comes from environment variables, see
// internal/config. With -serve the process stays up after the run exposing
// /metrics and /v1/assembly until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	httpadapter "github.com/cordexkit/evaltools/internal/adapter/http"
	kafkaadapter "github.com/cordexkit/evaltools/internal/adapter/kafka"
	"github.com/cordexkit/evaltools/internal/adapter/store"
	"github.com/cordexkit/evaltools/internal/assemble"
	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/config"
	"github.com/cordexkit/evaltools/internal/domain"
	"github.com/cordexkit/evaltools/internal/fix"
	"github.com/cordexkit/evaltools/internal/observability"
)

func main() {
	variables := flag.String("variables", "", "comma-separated variable_ids to select (required)")
	frequency := flag.String("frequency", "mon", "frequency to select")
	mergeFx := flag.Bool("merge-fx", false, "merge fixed fields into each run's datasets")
	applyFixes := flag.Bool("apply-fixes", false, "apply fix rules before merging")
	outDir := flag.String("out", "", "directory to write merged datasets to (optional)")
	serve := flag.Bool("serve", false, "keep serving /metrics and /v1/assembly after the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if *variables == "" {
		flag.Usage()
		logger.Error("-variables is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := &runTracker{}
	var srv *httpadapter.Server
	if *serve {
		srv = httpadapter.NewServer(cfg.HTTPAddr, tracker, tracker, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	if err := run(ctx, cfg, logger, metrics, tracker, options{
		variables:  splitList(*variables),
		frequency:  *frequency,
		mergeFx:    *mergeFx,
		applyFixes: *applyFixes,
		outDir:     *outDir,
	}); err != nil {
		logger.Error("run failed", "error", err)
		if srv == nil {
			os.Exit(1)
		}
	}

	if srv != nil {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
}

type options struct {
	variables  []string
	frequency  string
	mergeFx    bool
	applyFixes bool
	outDir     string
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, tracker *runTracker, opts options) error {
	cat, err := loadCatalog(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	tracker.setReady()
	logger.Info("catalog loaded", "id", cat.Descriptor.ID, "entries", len(cat.Entries))

	subset, err := cat.Select(opts.variables, opts.frequency, opts.mergeFx)
	if err != nil {
		return err
	}
	metrics.EntriesSelected.Add(float64(len(subset)))
	logger.Info("entries selected",
		"entries", len(subset),
		"sources", strings.Join(catalog.Sources(subset), ","),
	)

	var rules []fix.Rule
	if opts.applyFixes && cfg.FixRulesPath != "" {
		rules, err = fix.LoadRules(cfg.FixRulesPath)
		if err != nil {
			return err
		}
		logger.Info("fix rules loaded", "rules", len(rules), "path", cfg.FixRulesPath)
	}

	var audit assemble.AuditSink
	if cfg.AuditEnabled {
		writer := kafkaadapter.NewAuditWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("audit writer close error", "error", err)
			}
		}()
		audit = writer
	}
	recorder := newVerdictRecorder(audit)

	opener := store.NewOpener(cfg.DatasetCacheSize, logger)
	assembler := assemble.New(opener, rules, logger, metrics, recorder)

	result, err := assembler.Assemble(ctx, subset, assemble.Options{
		MergeFx:    opts.mergeFx,
		ApplyFixes: opts.applyFixes,
	})
	if err != nil {
		return err
	}
	tracker.setLastRun(httpadapter.RunStatus{
		CompletedAt: time.Now().UTC(),
		Datasets:    len(result),
		Rejected:    recorder.rejections(),
	})

	iids := make([]string, 0, len(result))
	for iid := range result {
		iids = append(iids, iid)
	}
	sort.Strings(iids)

	for _, iid := range iids {
		ds := result[iid]
		fmt.Printf("%s\t%s\n", iid, strings.Join(ds.VarNames(), ","))
		if opts.outDir == "" {
			continue
		}
		path := filepath.Join(opts.outDir, iid+".nc")
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := store.WriteDataset(path, ds); err != nil {
			return err
		}
		logger.Info("dataset written", "instance_id", iid, "path", path)
	}

	logger.Info("assembly complete", "datasets", len(result))
	return nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.Load(cfg.CatalogPath)
	}
	fetcher := catalog.NewFetcher(cfg.CacheDir, cfg.CacheTTL, cfg.HTTPTimeout, logger, metrics)
	return fetcher.Fetch(ctx, cfg.CatalogURL)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// verdictRecorder tallies rejections by stage and forwards the verdicts to an
// optional downstream sink, so the run status can report what was excluded.
type verdictRecorder struct {
	mu       sync.Mutex
	rejected map[string]int
	next     assemble.AuditSink
}

func newVerdictRecorder(next assemble.AuditSink) *verdictRecorder {
	return &verdictRecorder{rejected: make(map[string]int), next: next}
}

func (r *verdictRecorder) Publish(ctx context.Context, verdicts []domain.Verdict) error {
	r.mu.Lock()
	for _, v := range verdicts {
		if v.Outcome == domain.OutcomeRejected {
			r.rejected[string(v.Stage)]++
		}
	}
	r.mu.Unlock()

	if r.next == nil {
		return nil
	}
	return r.next.Publish(ctx, verdicts)
}

func (r *verdictRecorder) rejections() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.rejected))
	for stage, n := range r.rejected {
		out[stage] = n
	}
	return out
}

// runTracker implements the HTTP server's readiness and status sources.
type runTracker struct {
	mu    sync.Mutex
	ready bool
	run   httpadapter.RunStatus
	done  bool
}

func (t *runTracker) setReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = true
}

func (t *runTracker) setLastRun(run httpadapter.RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run = run
	t.done = true
}

func (t *runTracker) CheckReadiness(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return errors.New("catalog not loaded")
	}
	return nil
}

func (t *runTracker) LastRun() (httpadapter.RunStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run, t.done
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"jobtriage-engine/internal/classify"
	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/httpapi"
	"jobtriage-engine/internal/ingest"
	"jobtriage-engine/internal/mailsource"
	"jobtriage-engine/internal/normalize"
	"jobtriage-engine/internal/review"
	"jobtriage-engine/internal/scheduler"
	"jobtriage-engine/internal/secrets"
	"jobtriage-engine/internal/store"
)

func main() {
	// Engine data dir: env if provided (the UI shell passes one), else
	// a local folder.
	dataDir := os.Getenv("JOBTRIAGE_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir; two instances would race the sqlite file
	// and double-ingest the mailbox.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	held, err := lock.TryLock()
	if err != nil {
		log.Fatalf("instance lock: %v", err)
	}
	if !held {
		log.Fatalf("another engine already holds %s", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	raw, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, validation := config.NormalizeAndValidate(raw)
	for _, wmsg := range validation.Warnings {
		log.Printf("[config] warning: %s", wmsg)
	}
	if !validation.OK() {
		for _, emsg := range validation.Errors {
			log.Printf("[config] error: %s", emsg)
		}
		log.Fatalf("config invalid (%s)", userCfgPath)
	}

	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	db, err := store.Open(filepath.Join(dataDir, "jobtriage.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	hub := events.NewHub()
	gate := review.NewGate(db, hub)

	orch := classify.NewOrchestrator(
		time.Duration(cfg.Classify.ProviderTimeoutSeconds)*time.Second,
		buildProviders(cfg)...,
	)

	pipeline := ingest.NewPipeline(db, orch, normalize.New(cfg), gate, hub)
	pipeline.ReviewThreshold = cfg.Review.Threshold
	pipeline.SubBatchSize = cfg.Ingest.SubBatchSize
	pipeline.Workers = cfg.Ingest.Workers

	runIngest := buildIngestRun(cfg, pipeline, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Email.Enabled {
		interval := time.Duration(cfg.Ingest.IntervalSeconds) * time.Second
		go scheduler.Every(ctx, interval, "ingest", func(ctx context.Context) error {
			_, err := runIngest(ctx)
			return err
		})
	} else {
		log.Printf("[main] email disabled; ingestion only runs via POST /ingest/run")
	}

	var ingestStatus atomic.Value
	ingestStatus.Store(httpapi.IngestStatus{})

	mux := httpapi.NewMux(httpapi.Deps{
		DB:            db,
		Hub:           hub,
		Gate:          gate,
		CfgVal:        &cfgVal,
		IngestStatus:  &ingestStatus,
		RunIngestOnce: runIngest,
	})

	handler := httpapi.Chain(mux,
		httpapi.Recover,
		httpapi.RequestID,
		httpapi.AccessLog,
		httpapi.Cors,
	)

	port := cfg.App.Port
	if port <= 0 {
		port = 38573
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("[main] listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// buildProviders assembles the fallback chain from config. LLM tiers
// are skipped when no API key is present so the engine still runs fully
// offline on the heuristic tiers.
func buildProviders(cfg config.Config) []classify.Provider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	llmCfg := classify.LLMConfig{
		APIKey:            apiKey,
		Model:             cfg.Classify.LLM.Model,
		MaxTokens:         cfg.Classify.LLM.MaxTokens,
		RequestsPerSecond: cfg.Classify.LLM.RequestsPerSecond,
		Burst:             cfg.Classify.LLM.Burst,
	}

	var out []classify.Provider
	for _, name := range cfg.Classify.ProviderOrder {
		switch name {
		case "two_stage":
			if apiKey == "" {
				log.Printf("[main] OPENAI_API_KEY not set; skipping two_stage tier")
				continue
			}
			out = append(out, classify.NewTwoStageLLM(llmCfg))
		case "single_stage":
			if apiKey == "" {
				log.Printf("[main] OPENAI_API_KEY not set; skipping single_stage tier")
				continue
			}
			out = append(out, classify.NewSingleStageLLM(llmCfg))
		case "keyword":
			out = append(out, classify.NewKeywordProvider(cfg))
		case "baseline":
			out = append(out, classify.Baseline{})
		}
	}
	return out
}

// buildIngestRun wires the mail source to the pipeline as one callable
// cycle: fetch unseen mail, classify, persist, report.
func buildIngestRun(cfg config.Config, pipeline *ingest.Pipeline, hub *events.Hub) func(context.Context) (ingest.Summary, error) {
	return func(ctx context.Context) (ingest.Summary, error) {
		if !cfg.Email.Enabled {
			return ingest.Summary{}, errors.New("email source is disabled in config")
		}

		password := os.Getenv("JOBTRIAGE_IMAP_PASSWORD")
		if password == "" {
			pw, err := secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(cfg))
			if err != nil {
				return ingest.Summary{}, fmt.Errorf("imap password: %w", err)
			}
			password = pw
		}

		src := mailsource.New(
			cfg.Email.IMAPHost, cfg.Email.IMAPPort,
			cfg.Email.Username, password, cfg.Email.Mailbox, hub,
		)

		since := time.Now().AddDate(0, 0, -cfg.Email.SinceDays)
		batch, err := src.FetchBatch(ctx, cfg.Email.AccountID, since, cfg.Email.MaxFetch)
		if err != nil {
			return ingest.Summary{}, fmt.Errorf("fetch batch: %w", err)
		}
		defer batch.Close()
		logBatch(cfg.Email.AccountID, batch.Inputs)

		runID := uuid.NewString()
		sum, err := pipeline.Ingest(ctx, batch.Inputs)

		// Only durably stored mail loses its unseen flag; a failed
		// sub-batch is fetched again on the next cycle.
		if ackErr := batch.Ack(sum.CommittedKeys); ackErr != nil {
			log.Printf("[ingest] run=%s ack seen: %v", runID, ackErr)
		}

		log.Printf("[ingest] run=%s written=%d dups=%d errors=%d",
			runID, sum.Written, sum.SkippedDuplicates, sum.Errors)
		return sum, err
	}
}

func logBatch(accountID string, batch []domain.EmailInput) {
	log.Printf("[mailsource] account=%s fetched=%d", accountID, len(batch))
}

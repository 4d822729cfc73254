// Package pipeline orchestrates the per-document anonymization flow:
// identify, scan, resolve, redact, record.
//
// Documents are processed by a bounded worker pool; the ledger is written by
// a single collector loop so checkpoints never interleave with records. A
// failure in any stage is contained to its document: the original text is
// passed through untouched, no ledger entry is made, and the failure is
// logged and audited with the document id.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dativo-io/veil/internal/audit"
	"github.com/dativo-io/veil/internal/docid"
	"github.com/dativo-io/veil/internal/entity"
	"github.com/dativo-io/veil/internal/ledger"
	veilotel "github.com/dativo-io/veil/internal/otel"
	"github.com/dativo-io/veil/internal/redactor"
	"github.com/dativo-io/veil/internal/resolver"
	"github.com/dativo-io/veil/internal/scanner"
)

var tracer = veilotel.Tracer("github.com/dativo-io/veil/internal/pipeline")

// DefaultCheckpointInterval is the number of processed documents between
// ledger checkpoints.
const DefaultCheckpointInterval = 1000

// Result is the outcome for one input document. Text is the redacted content
// on success and the untouched original otherwise.
type Result struct {
	Index      int
	DocumentID string
	Text       string
	Status     string // audit.StatusAnonymized, StatusFailed, or StatusSkipped
	Entities   int
	Err        error
}

// Pipeline runs documents through the engine.
type Pipeline struct {
	strategies []scanner.Strategy
	ledger     *ledger.Ledger

	workers   int
	interval  int
	ckptPath  string
	snapSpec  string
	skipKnown bool
	audit     *audit.Store
	runID     string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds document-level parallelism. Defaults to NumCPU.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithCheckpoint enables count-based ledger checkpoints: every interval
// processed documents, the ledger is snapshotted to a part file next to path.
func WithCheckpoint(path string, interval int) Option {
	return func(p *Pipeline) {
		p.ckptPath = path
		p.interval = interval
	}
}

// WithSnapshotSchedule additionally snapshots the ledger on a cron schedule
// (standard 5-field format) while the run is in flight. Useful for long runs
// where the document-count cadence is too coarse.
func WithSnapshotSchedule(spec string) Option {
	return func(p *Pipeline) { p.snapSpec = spec }
}

// WithSkipKnown skips documents whose derived id is already in the ledger,
// enabling resumed runs on top of a loaded checkpoint.
func WithSkipKnown() Option {
	return func(p *Pipeline) { p.skipKnown = true }
}

// WithAudit records one audit row per processed document under runID.
func WithAudit(store *audit.Store, runID string) Option {
	return func(p *Pipeline) {
		p.audit = store
		p.runID = runID
	}
}

// New creates a pipeline over the given candidate strategies and ledger.
func New(strategies []scanner.Strategy, led *ledger.Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		strategies: strategies,
		ledger:     led,
		workers:    runtime.NumCPU(),
		interval:   DefaultCheckpointInterval,
	}
	for _, o := range opts {
		o(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// outcome carries a worker's result plus what the collector needs to record.
type outcome struct {
	res      Result
	resolved []entity.Candidate
	duration time.Duration
}

// Run processes all documents and returns one Result per input, in input
// order. A single document's failure never aborts the batch; Run itself only
// returns an error when the whole run is cancelled before completion.
func (p *Pipeline) Run(ctx context.Context, texts []string) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	if p.snapSpec != "" && p.ckptPath != "" {
		c := cron.New()
		if _, err := c.AddFunc(p.snapSpec, func() { p.checkpoint("scheduled") }); err != nil {
			return nil, fmt.Errorf("invalid snapshot schedule %q: %w", p.snapSpec, err)
		}
		c.Start()
		defer c.Stop()
	}

	results := make([]Result, len(texts))
	jobs := make(chan int)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes <- p.process(ctx, idx, texts[idx])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range texts {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Collector loop: the only writer of the ledger during the run.
	processed := 0
	failed := 0
	for out := range outcomes {
		res := out.res
		if res.Status == audit.StatusAnonymized {
			p.ledger.Record(res.DocumentID, out.resolved)
		} else if res.Status == audit.StatusFailed {
			failed++
			log.Error().Err(res.Err).
				Str("document_id", res.DocumentID).
				Func(veilotel.LogTraceFields(ctx)).
				Msg("document processing failed, passing through original text")
		}
		p.recordAudit(ctx, res, out)
		results[res.Index] = res

		processed++
		if p.interval > 0 && p.ckptPath != "" && processed%p.interval == 0 {
			p.checkpoint("interval")
		}
	}

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Status == "" {
				results[i] = Result{
					Index:  i,
					Text:   texts[i],
					Status: audit.StatusFailed,
					Err:    err,
				}
			}
		}
		return results, fmt.Errorf("run cancelled after %d documents: %w", processed, err)
	}

	span.SetAttributes(
		attribute.Int("pipeline.documents", len(texts)),
		attribute.Int("pipeline.failed", failed),
	)
	return results, nil
}

// process runs one document through identify, scan, resolve, redact. Panics
// from pathological patterns or strategies are contained here.
func (p *Pipeline) process(ctx context.Context, idx int, text string) (out outcome) {
	ctx, span := tracer.Start(ctx, "pipeline.document")
	defer span.End()
	start := time.Now()

	id := docid.Identify(text)
	out = outcome{res: Result{Index: idx, DocumentID: id, Text: text}}

	defer func() {
		out.duration = time.Since(start)
		if r := recover(); r != nil {
			out.res = Result{
				Index:      idx,
				DocumentID: id,
				Text:       text,
				Status:     audit.StatusFailed,
				Err:        fmt.Errorf("panic during document processing: %v", r),
			}
			out.resolved = nil
		}
	}()

	if p.skipKnown && p.ledger.Has(id) {
		out.res.Status = audit.StatusSkipped
		return out
	}

	var candidates []entity.Candidate
	for _, s := range p.strategies {
		found, err := s.Scan(ctx, text)
		if err != nil {
			out.res.Status = audit.StatusFailed
			out.res.Err = fmt.Errorf("scanning document %s: %w", id, err)
			return out
		}
		candidates = append(candidates, found...)
	}

	resolved := resolver.Resolve(candidates)
	redacted, err := redactor.Redact(text, resolved)
	if err != nil {
		out.res.Status = audit.StatusFailed
		out.res.Err = fmt.Errorf("redacting document %s: %w", id, err)
		return out
	}

	out.res.Text = redacted
	out.res.Status = audit.StatusAnonymized
	out.res.Entities = len(resolved)
	out.resolved = resolved
	return out
}

// checkpoint snapshots the ledger, logging instead of failing the run: the
// in-memory ledger is intact and the write is retried at the next cadence.
func (p *Pipeline) checkpoint(reason string) {
	path, err := p.ledger.Checkpoint(p.ckptPath)
	if err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("ledger checkpoint failed, will retry at next interval")
		return
	}
	log.Info().Str("path", path).Str("reason", reason).Int("documents", p.ledger.Len()).Msg("ledger checkpoint written")
}

func (p *Pipeline) recordAudit(ctx context.Context, res Result, out outcome) {
	if p.audit == nil {
		return
	}
	rec := audit.Record{
		RunID:      p.runID,
		DocumentID: res.DocumentID,
		Status:     res.Status,
		Entities:   res.Entities,
		Categories: categoriesOf(out.resolved),
		DurationMS: out.duration.Milliseconds(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := p.audit.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("document_id", res.DocumentID).Msg("audit record failed")
	}
}

func categoriesOf(resolved []entity.Candidate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range resolved {
		k := e.Category.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Package ingest orchestrates one ingestion run per source: fetch, normalize,
// resolve, persist, with a full ledger entry either way.
package ingest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funding-harvester/internal/alert"
	"github.com/sells-group/funding-harvester/internal/canonical"
	"github.com/sells-group/funding-harvester/internal/connector"
	"github.com/sells-group/funding-harvester/internal/model"
	"github.com/sells-group/funding-harvester/internal/resolve"
	"github.com/sells-group/funding-harvester/internal/store"
)

// Options tune pipeline behavior.
type Options struct {
	// CaptureRaw persists the raw upstream response pages for auditability.
	CaptureRaw bool
	// Parallel runs sources concurrently in RunAll. Cross-source races on
	// first observations of the same company are tolerated; the merge
	// operator reconciles any duplicates they create.
	Parallel bool
}

// Pipeline runs ingestion for configured sources.
type Pipeline struct {
	store    store.Store
	resolver *resolve.Resolver
	registry *connector.Registry
	alerter  *alert.Alerter
	opts     Options
}

// New creates a pipeline. alerter may be nil.
func New(st store.Store, resolver *resolve.Resolver, registry *connector.Registry, alerter *alert.Alerter, opts Options) *Pipeline {
	return &Pipeline{
		store:    st,
		resolver: resolver,
		registry: registry,
		alerter:  alerter,
		opts:     opts,
	}
}

// RunSource executes one ingestion run for a source over [start, end]. The
// run is recorded in the ledger whether it succeeds or fails; a failed run
// additionally raises an alert. The returned run reflects the final state.
func (p *Pipeline) RunSource(ctx context.Context, source string, start, end time.Time) (*model.IngestRun, error) {
	run, err := p.store.StartIngestRun(ctx, source)
	if err != nil {
		return nil, err
	}

	zap.L().Info("ingest: run started",
		zap.String("source", source),
		zap.String("run_key", run.RunKey),
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
	)

	fetched, normalized, runErr := p.ingest(ctx, source, start, end)
	run.RecordsFetched = fetched
	run.RecordsNormalized = normalized

	if runErr != nil {
		run.Status = model.RunStatusFailed
		msg := runErr.Error()
		run.Error = &msg
		if err := p.store.FailIngestRun(ctx, run.ID, fetched, normalized, msg); err != nil {
			zap.L().Error("ingest: failed to record run failure", zap.Error(err))
		}
		p.alerter.Send(ctx, []alert.Alert{alert.IngestFailure(run, msg)})
		zap.L().Error("ingest: run failed",
			zap.String("source", source),
			zap.Int("fetched", fetched),
			zap.Int("normalized", normalized),
			zap.Error(runErr),
		)
		return run, runErr
	}

	run.Status = model.RunStatusSuccess
	if err := p.store.CompleteIngestRun(ctx, run.ID, fetched, normalized); err != nil {
		return run, err
	}
	zap.L().Info("ingest: run complete",
		zap.String("source", source),
		zap.Int("fetched", fetched),
		zap.Int("normalized", normalized),
	)
	return run, nil
}

// ingest does the fetch/normalize/persist work and reports counts even on
// failure, so the ledger captures partial progress.
func (p *Pipeline) ingest(ctx context.Context, source string, start, end time.Time) (fetched, normalized int, err error) {
	conn, err := p.registry.Get(source)
	if err != nil {
		return 0, 0, err
	}

	result, err := conn.Fetch(ctx, start, end)
	if err != nil {
		return 0, 0, err
	}
	fetched = len(result.Events)

	if p.opts.CaptureRaw && len(result.RawPages) > 0 {
		if err := p.store.RecordRawPayloads(ctx, source, result.RawPages); err != nil {
			// The audit trail is best-effort; losing it must not lose events.
			zap.L().Warn("ingest: raw payload capture failed",
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}

	for _, ev := range result.Events {
		ok, err := p.ingestEvent(ctx, source, ev, end)
		if err != nil {
			return fetched, normalized, err
		}
		if ok {
			normalized++
		}
	}
	return fetched, normalized, nil
}

// ingestEvent persists one canonical event. Events without a company name are
// skipped, not failed: one junk record must not sink the run.
func (p *Pipeline) ingestEvent(ctx context.Context, source string, ev canonical.Event, end time.Time) (bool, error) {
	name := strings.TrimSpace(ev.CompanyName)
	if name == "" {
		zap.L().Debug("ingest: skipping event without company name",
			zap.String("source", source),
		)
		return false, nil
	}

	// Undated events still count as observed; the run window's end date
	// stands in so the company's seen span stays meaningful.
	seen := end.Format("2006-01-02")
	if ev.Date != nil {
		seen = *ev.Date
	}

	var domain *string
	if d := ev.Identifiers["domain"]; d != "" {
		domain = &d
	}

	companyID, err := p.resolver.ResolveAndUpsert(ctx, resolve.Observation{
		Name:        name,
		Country:     ev.Country,
		SeenDate:    seen,
		Domain:      domain,
		Identifiers: ev.Identifiers,
	})
	if err != nil {
		return false, err
	}

	evSource := ev.Source
	if evSource == "" {
		evSource = source
	}
	err = p.store.AddFundingEvent(ctx, &model.FundingEvent{
		CompanyID:   companyID,
		FundingType: ev.FundingType,
		Amount:      ev.Amount,
		Date:        ev.Date,
		Source:      evSource,
		RawID:       ev.RawID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RunAll executes one run per source. A failed source does not prevent the
// remaining sources from running; the first failure is returned after all
// sources finish. With Options.Parallel the sources run concurrently.
func (p *Pipeline) RunAll(ctx context.Context, sources []string, start, end time.Time) ([]*model.IngestRun, error) {
	if p.opts.Parallel {
		return p.runAllParallel(ctx, sources, start, end)
	}

	var runs []*model.IngestRun
	var firstErr error
	for _, source := range sources {
		run, err := p.RunSource(ctx, source, start, end)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return runs, firstErr
}

func (p *Pipeline) runAllParallel(ctx context.Context, sources []string, start, end time.Time) ([]*model.IngestRun, error) {
	runs := make([]*model.IngestRun, len(sources))
	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			run, err := p.RunSource(ctx, source, start, end)
			runs[i] = run
			return err
		})
	}
	err := g.Wait()

	out := make([]*model.IngestRun, 0, len(sources))
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	return out, err
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ObservationsIndexer/internal/crawler"
	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/header"
	"ObservationsIndexer/internal/identity"
	"ObservationsIndexer/internal/observation"
	"ObservationsIndexer/internal/ports"
	"ObservationsIndexer/internal/reconcile"
)

const defaultMaxErrorExamples = 10

// Failure kinds used in reports and metrics.
const (
	KindUnclassifiable  = "unclassifiable_path"
	KindIdentity        = "identity_resolution"
	KindMissingField    = "missing_field"
	KindStorageConflict = "storage_conflict"
	KindStorage         = "storage"
	KindHeaderRead      = "header_read"
)

// HeaderSource yields the headers of a facility tree.
type HeaderSource interface {
	Crawl(ctx context.Context, tree identity.Tree, sel crawler.Selection) ([]crawler.Result, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Classifier       *identity.Classifier
	Builder          *observation.Builder
	Engine           *reconcile.Engine
	Repository       ports.ObservationRepository
	Source           HeaderSource
	Recorder         ports.OutcomeRecorder
	Notifier         ports.Notifier
	Logger           *slog.Logger
	MaxErrorExamples int
}

// Pipeline runs batches of headers through classify, identify, build and
// reconcile, one record at a time.
type Pipeline struct {
	classifier  *identity.Classifier
	builder     *observation.Builder
	engine      *reconcile.Engine
	repository  ports.ObservationRepository
	source      HeaderSource
	recorder    ports.OutcomeRecorder
	notifier    ports.Notifier
	logger      *slog.Logger
	maxExamples int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	maxExamples := deps.MaxErrorExamples
	if maxExamples <= 0 {
		maxExamples = defaultMaxErrorExamples
	}
	return &Pipeline{
		classifier:  deps.Classifier,
		builder:     deps.Builder,
		engine:      deps.Engine,
		repository:  deps.Repository,
		source:      deps.Source,
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		maxExamples: maxExamples,
	}
}

// Ingest reconciles every header of a batch. Per-record failures are
// counted in the report and never stop the batch; only cancellation of ctx
// does.
func (p *Pipeline) Ingest(ctx context.Context, label string, headers []header.Header) (Report, error) {
	return p.ingest(ctx, label, headers, nil)
}

func (p *Pipeline) ingest(ctx context.Context, label string, headers []header.Header, unread []crawler.FileError) (Report, error) {
	if p.classifier == nil || p.builder == nil || p.engine == nil {
		return Report{}, fmt.Errorf("pipeline is not configured")
	}

	report := newReport(label, p.maxExamples)
	p.debug("ingest batch", "run_id", report.RunID, "label", label, "records", len(headers))

	for _, f := range unread {
		report.fail(KindHeaderRead, f.Path, f.Err)
		p.failed(KindHeaderRead)
		p.logFailure(KindHeaderRead, f.Path, f.Err)
	}

	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			report.finish()
			return report, fmt.Errorf("ingest %s interrupted: %w", label, err)
		}

		path := header.NewView(h).Filename()
		action, err := p.ingestOne(ctx, path, h)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.finish()
				return report, fmt.Errorf("ingest %s interrupted: %w", label, err)
			}
			kind := failureKind(err)
			if kind == KindUnclassifiable {
				report.skip(path, err)
				p.record(domain.ActionSkip)
			} else {
				report.fail(kind, path, err)
				p.failed(kind)
			}
			p.logFailure(kind, path, err)
			continue
		}
		report.count(action)
		p.record(action)
	}

	report.finish()
	p.summarize(ctx, &report)
	return report, nil
}

// ingestOne takes one header through the whole chain.
func (p *Pipeline) ingestOne(ctx context.Context, path string, h header.Header) (domain.Action, error) {
	if path == "" {
		return domain.ActionSkip, &domain.PathError{Kind: domain.ErrUnclassifiablePath, Reason: "header has no " + header.KeyFilename}
	}

	cls, id, err := p.classifier.Identify(path)
	if err != nil {
		return domain.ActionSkip, err
	}

	candidate, err := p.builder.Build(header.NewView(h), observation.Source{Path: path, Classification: cls, Identity: id})
	if err != nil {
		return domain.ActionSkip, err
	}

	return p.engine.Reconcile(ctx, candidate)
}

// ProcessTree crawls the selected dates of tree and ingests each kind of
// file it holds as its own batch.
func (p *Pipeline) ProcessTree(ctx context.Context, tree identity.Tree, sel crawler.Selection) ([]Report, error) {
	if p.source == nil {
		return nil, fmt.Errorf("header source is not configured")
	}

	results, err := p.source.Crawl(ctx, tree, sel)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", tree.Name, err)
	}

	reports := make([]Report, 0, len(results))
	for _, res := range results {
		label := res.Tree
		if res.Kind != "" {
			label += "/" + res.Kind
		}
		report, err := p.ingest(ctx, label, res.Headers, res.Failures)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// Notify publishes the reports through the configured notifier, if any.
func (p *Pipeline) Notify(ctx context.Context, reports ...Report) error {
	if p.notifier == nil || len(reports) == 0 {
		return nil
	}

	var message string
	for _, r := range reports {
		message += r.String() + "\n"
	}
	if err := p.notifier.PublishReport(ctx, message); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, report *Report) {
	if p.repository == nil {
		return
	}
	summary, err := p.repository.Summary(ctx)
	if err != nil {
		p.warn("catalog summary failed", "error", err)
		return
	}
	report.Catalog = &summary

	args := []interface{}{"run_id", report.RunID, "label", report.Label,
		"inserted", report.Inserted, "updated", report.Updated,
		"skipped", report.Skipped, "failed", report.Failed,
		"catalog_entries", summary.Count}
	if summary.First != nil && summary.Last != nil {
		args = append(args, "first", summary.First.Format(time.RFC3339), "last", summary.Last.Format(time.RFC3339))
	}
	if p.logger != nil {
		p.logger.Info("batch ingested", args...)
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnclassifiablePath):
		return KindUnclassifiable
	case errors.Is(err, domain.ErrIdentityResolution):
		return KindIdentity
	case errors.Is(err, domain.ErrMissingField):
		return KindMissingField
	case errors.Is(err, domain.ErrStorageConflict):
		return KindStorageConflict
	default:
		return KindStorage
	}
}

func (p *Pipeline) record(action domain.Action) {
	if p.recorder != nil {
		p.recorder.Record(action)
	}
}

func (p *Pipeline) failed(kind string) {
	if p.recorder != nil {
		p.recorder.Failed(kind)
	}
}

func (p *Pipeline) logFailure(kind, path string, err error) {
	if p.logger == nil {
		return
	}
	if kind == KindUnclassifiable {
		p.logger.Debug("skipping file", "path", path, "error", err)
		return
	}
	p.logger.Warn("record not ingested", "kind", kind, "path", path, "error", err)
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

// newRunID tags a batch in logs and reports.
func newRunID() string {
	return uuid.NewString()
}

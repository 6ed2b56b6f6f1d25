// Package attribution runs the explainability pipeline shared by every
// AI-backed operation: observe data access, extract the prompt payload, call
// the model, reconcile its self-report against observed access, filter the
// result through consent, and append the audit record.
package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"glassbank/internal/attr"
	"glassbank/internal/audit"
	"glassbank/internal/extraction"
	"glassbank/internal/observer"
	"glassbank/internal/platform/metrics"
	"glassbank/internal/reasoning"
	"glassbank/internal/reconcile"
	"glassbank/internal/storage"
	"glassbank/pkg/apperrors"
)

var tracer = otel.Tracer("glassbank/attribution")

// ConsentFilter is the slice of the consent service the pipeline needs.
type ConsentFilter interface {
	FilterAllowed(ctx context.Context, userID string, ids []string) ([]string, error)
}

// Pipeline wires the attribution stages. One pipeline serves all operations;
// per-operation behavior comes in through Request.
type Pipeline struct {
	registry *extraction.Registry
	reasoner reasoning.Client
	consent  ConsentFilter
	audits   *audit.Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	model    string
	now      func() time.Time
}

func New(
	registry *extraction.Registry,
	reasoner reasoning.Client,
	consent ConsentFilter,
	audits *audit.Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	model string,
) *Pipeline {
	return &Pipeline{
		registry: registry,
		reasoner: reasoner,
		consent:  consent,
		audits:   audits,
		logger:   logger,
		metrics:  m,
		model:    model,
		now:      time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Request describes one attribution run.
type Request struct {
	UserID    string
	// Operation names the audit record, e.g. "loan_eligibility" or "chat".
	Operation string
	// QueryText is the user's question or a synthetic description of the
	// operation, used for extractor selection and the audit trail.
	QueryText string

	// System and BuildPrompt produce the model input from extracted data.
	System      string
	BuildPrompt func(data map[string]any) string

	// SelfReportKey is the JSON field carrying the model's attribute
	// self-report. Defaults to "attributes_used".
	SelfReportKey string

	// Lenient accepts well-formed self-reported identifiers with known topic
	// prefixes that observation missed, instead of dropping them. Used by the
	// conversational flow where extraction is coarse.
	Lenient bool

	// ExtraAccessed adds attributes the caller knows were read outside the
	// extraction registry.
	ExtraAccessed []string

	MaxTokens int
	Timeout   time.Duration
}

// Outcome is the result of a successful attribution run.
type Outcome struct {
	// Parsed is the decoded model response.
	Parsed map[string]any
	// RawOutput is the unmodified model text, as stored in the audit trail.
	RawOutput string
	// Attributes is the consent-filtered validated attribute list, the only
	// list clients ever see.
	Attributes []string
	// Status is the reconciliation verdict, before consent filtering.
	Status reconcile.Status
	// AuditID references the appended audit record, empty when the append
	// failed.
	AuditID string
	// Data is the extracted payload the model saw.
	Data map[string]any
}

// Run executes the full pipeline. Reasoning failures are returned as coded
// errors without an audit record; callers with deterministic fallbacks
// translate them, everything else surfaces to the client.
func (p *Pipeline) Run(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "attribution.run", trace.WithAttributes(
		attribute.String("operation", req.Operation),
	))
	defer span.End()
	started := p.now()

	// Observe every storage read from here on.
	ctx, obs := observer.WithObserver(ctx)

	data, extractorAttrs := p.registry.ExtractAll(ctx, req.UserID, req.QueryText)
	span.AddEvent("extracted")

	prompt := req.BuildPrompt(data)
	raw, err := p.reasoner.Generate(ctx, reasoning.Request{
		Model:        p.model,
		System:       req.System,
		Prompt:       prompt,
		JSONResponse: true,
		MaxTokens:    req.MaxTokens,
		Timeout:      req.Timeout,
	})
	p.metrics.ObserveReasoning(p.now().Sub(started).Seconds())
	if err != nil {
		return Outcome{}, p.reasoningError(ctx, req, err)
	}
	span.AddEvent("generated")

	var parsed map[string]any
	if err := reasoning.DecodeJSON(raw, &parsed); err != nil {
		return Outcome{}, p.reasoningError(ctx, req, err)
	}

	selfReportKey := req.SelfReportKey
	if selfReportKey == "" {
		selfReportKey = "attributes_used"
	}
	var selfReported []string
	if items, ok := parsed[selfReportKey].([]any); ok {
		selfReported = reasoning.StringList(items)
	}

	observed := obs.AccessedAttributes(storage.CollectionTopics, attr.TopicAttributes)
	accessed := append(append(extractorAttrs, observed...), req.ExtraAccessed...)

	result := reconcile.Reconcile(selfReported, accessed)
	if req.Lenient {
		result = result.PromoteUnmatched(attr.WellFormed)
	}
	p.metrics.ObserveValidation(string(result.Status))
	span.SetAttributes(attribute.String("validation_status", string(result.Status)))

	validated := result.Validated()
	final, err := p.consent.FilterAllowed(ctx, req.UserID, validated)
	if err != nil {
		return Outcome{}, err
	}

	auditID := p.appendAudit(ctx, req, data, obs, raw, selfReported, accessed, validated, result, started)

	return Outcome{
		Parsed:     parsed,
		RawOutput:  raw,
		Attributes: final,
		Status:     result.Status,
		AuditID:    auditID,
		Data:       data,
	}, nil
}

// appendAudit writes the trail record. Failure is logged and counted, never
// propagated: the model already ran and the user deserves the answer.
func (p *Pipeline) appendAudit(
	ctx context.Context,
	req Request,
	data map[string]any,
	obs *observer.Observer,
	raw string,
	selfReported, accessed, validated []string,
	result reconcile.Result,
	started time.Time,
) string {
	snapshot, err := json.Marshal(data)
	if err != nil {
		snapshot = nil
	}
	queries, err := json.Marshal(obs.Snapshot())
	if err != nil {
		queries = nil
	}

	auditID, err := p.audits.Append(ctx, audit.Record{
		UserID:       req.UserID,
		Operation:    req.Operation,
		QueryText:    req.QueryText,
		DataSnapshot: snapshot,
		QueriesRun:   queries,
		Model:        p.model,
		RawOutput:    raw,
		SelfReported: attr.SortedDedupe(selfReported),
		Accessed:     attr.SortedDedupe(accessed),
		Validated:    validated,
		Status:       string(result.Status),
		ProcessingMS: p.now().Sub(started).Milliseconds(),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit record",
			"operation", req.Operation,
			"user_id", req.UserID,
			"error", err,
		)
		return ""
	}
	return auditID
}

func (p *Pipeline) reasoningError(ctx context.Context, req Request, err error) error {
	var code apperrors.Code
	switch {
	case errors.Is(err, reasoning.ErrTimeout):
		code = apperrors.CodeReasoningTimeout
	case errors.Is(err, reasoning.ErrMalformed), errors.Is(err, reasoning.ErrEmpty):
		code = apperrors.CodeReasoningMalformed
	default:
		code = apperrors.CodeReasoningUnavailable
	}
	p.metrics.IncReasoningFailure(string(code))
	p.logger.WarnContext(ctx, "reasoning failed",
		"operation", req.Operation,
		"user_id", req.UserID,
		"error", err,
	)
	return apperrors.Wrap(code, "AI analysis failed", err)
}

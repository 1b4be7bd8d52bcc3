package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/async"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
	"github.com/joseph-ayodele/tms-reconciler/internal/scoring"
	"github.com/joseph-ayodele/tms-reconciler/internal/telemetry"
)

// Lookup outcomes logged when a line degrades to "no candidates".
const (
	lookupTimeout = "timeout"
	lookupError   = "error"
)

// Engine reconciles invoice lines against TMS shipment records.
type Engine struct {
	finder *candidates.Finder
	logger *zap.Logger
}

func NewEngine(finder *candidates.Finder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{finder: finder, logger: logger}
}

// Validate reconciles every line and checks the header. A bad line never fails the run:
// it becomes a mismatch row with a note. The only errors are an invalid policy and
// cancellation of ctx, in which case no partial result is returned.
func (e *Engine) Validate(ctx context.Context, header entity.InvoiceHeader, lines []entity.InvoiceLineItem, policy Policy) (*entity.ValidationResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		ctx, runID = common.WithRunID(ctx)
	}
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanValidate,
		attribute.String("run_id", runID),
		attribute.String("invoice_id", header.InvoiceID),
		attribute.Int("line_count", len(lines)),
	)
	defer span.End()

	logger := e.logger.With(zap.String("run_id", runID), zap.String("invoice_id", header.InvoiceID))
	logger.Info("validation started", zap.Int("line_count", len(lines)))

	result := &entity.ValidationResult{RunID: runID}
	result.Errors, result.Warnings = CheckHeader(header)

	scorer := scoring.NewScorer(policy.scoringPolicy())
	rows := make([]entity.ValidationRow, len(lines))
	lineWarnings := make([][]string, len(lines))

	err := async.ForEach(ctx, logger, policy.Concurrency, len(lines), func(ctx context.Context, i int) error {
		row, warnings, err := e.reconcileLine(ctx, logger, i, lines[i], scorer, policy)
		if err != nil {
			return err
		}
		rows[i] = row
		lineWarnings[i] = warnings
		return nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Warn("validation aborted", zap.Error(err))
		return nil, err
	}

	for i := range rows {
		result.Summary.Add(rows[i].MatchType)
		result.Warnings = append(result.Warnings, lineWarnings[i]...)
	}
	result.Rows = rows

	span.SetAttributes(
		attribute.Int("exact_matches", result.Summary.ExactMatches),
		attribute.Int("fuzzy_matches", result.Summary.FuzzyMatches),
		attribute.Int("mismatches", result.Summary.Mismatches),
	)
	logger.Info("validation completed",
		zap.Int("exact_matches", result.Summary.ExactMatches),
		zap.Int("fuzzy_matches", result.Summary.FuzzyMatches),
		zap.Int("mismatches", result.Summary.Mismatches),
		zap.Int("header_errors", len(result.Errors)),
	)
	return result, nil
}

// reconcileLine returns an error only when the run itself is cancelled.
func (e *Engine) reconcileLine(ctx context.Context, logger *zap.Logger, index int, item entity.InvoiceLineItem, scorer *scoring.Scorer, policy Policy) (entity.ValidationRow, []string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLine, attribute.Int("line_index", index))
	defer span.End()

	line := normalize.Line(item)
	row := entity.ValidationRow{
		LineInvoiceNumber: item.LineInvoiceNumber,
		Chassis:           line.DisplayChassis(),
		Container:         line.DisplayContainer(),
		MatchType:         constants.MatchMismatch,
	}
	warnings := lineDateWarnings(index, line)

	if !line.HasIdentifiers() {
		row.Notes = []string{constants.NoteNoIdentifiers}
		return row, warnings, nil
	}

	lookupCtx, cancel := ctx, context.CancelFunc(func() {})
	if policy.LookupTimeout > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, policy.LookupTimeout)
	}
	records, err := e.finder.Find(lookupCtx, line, policy.Window)
	timedOut := errors.Is(lookupCtx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case ctx.Err() != nil:
		return row, nil, ctx.Err()
	case errors.Is(err, candidates.ErrNoDateWindow):
		row.Notes = []string{constants.NoteNoDates}
		return row, warnings, nil
	case err != nil:
		outcome, note := lookupError, constants.NoteLookupFailed
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			outcome, note = lookupTimeout, constants.NoteLookupTimedOut
		}
		logger.Warn("shipment lookup degraded to no candidates",
			zap.Int("line_index", index),
			zap.String("line_invoice_number", item.LineInvoiceNumber),
			zap.String("lookup_outcome", outcome),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		row.Notes = []string{note}
		return row, warnings, nil
	case len(records) == 0:
		row.Notes = []string{constants.NoteNoCandidates}
		return row, warnings, nil
	}

	scored := make([]entity.MatchCandidate, len(records))
	for i, rec := range records {
		scored[i] = scorer.Score(line, rec)
	}
	best, _ := scoring.Best(line, scored)

	row.MatchConfidence = best.Confidence
	row.MatchType = best.MatchType
	row.TMSMatch = entity.NewTMSMatch(best)

	span.SetAttributes(
		attribute.Int("candidates", len(records)),
		attribute.Int("confidence", best.Confidence),
		attribute.String("match_type", string(best.MatchType)),
	)
	logger.Debug("line reconciled",
		zap.Int("line_index", index),
		zap.Int("candidates", len(records)),
		zap.Int("confidence", best.Confidence),
		zap.String("match_type", string(best.MatchType)),
	)
	return row, warnings, nil
}

func lineDateWarnings(index int, line normalize.LineItem) []string {
	var out []string
	if line.DateOut.Ambiguous {
		out = append(out, fmt.Sprintf("line %d (%s): dateOut %v has a two-digit year and was not resolved",
			index+1, line.Source.LineInvoiceNumber, line.Source.DateOut))
	}
	if line.DateIn.Ambiguous {
		out = append(out, fmt.Sprintf("line %d (%s): dateIn %v has a two-digit year and was not resolved",
			index+1, line.Source.LineInvoiceNumber, line.Source.DateIn))
	}
	return out
}

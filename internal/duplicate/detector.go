package duplicate

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
)

// Finding flags two lines of one invoice that bill the same chassis move.
type Finding struct {
	Kind                string `json:"kind"`
	ChassisKey          string `json:"chassis_key"`
	FirstIndex          int    `json:"first_index"`
	SecondIndex         int    `json:"second_index"`
	FirstLineInvoiceNo  string `json:"first_line_invoice_number"`
	SecondLineInvoiceNo string `json:"second_line_invoice_number"`
	Message             string `json:"message"`
}

// Report is the result of one detection pass.
type Report struct {
	Findings     []Finding `json:"findings"`
	ExactCount   int       `json:"exact_count"`
	PartialCount int       `json:"partial_count"`
}

type move struct {
	index   int
	line    normalize.LineItem
	out, in time.Time
}

// Detector finds duplicate chassis moves within a single invoice. It is independent of
// TMS matching and never changes confidence scores.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

// Detect compares every pair of lines sharing a chassis key:
//   - dup_move_exact: identical out and in dates
//   - dup_move_partial: overlapping but not identical date ranges
//
// Lines without a chassis or without any valid date are never flagged. Findings are
// ordered by first line index, then second.
func (d *Detector) Detect(lines []entity.InvoiceLineItem) Report {
	byChassis := make(map[string][]move)
	var order []string
	for i, item := range lines {
		l := normalize.Line(item)
		if l.ChassisKey == "" {
			continue
		}
		out, in, ok := l.EffectiveDates()
		if !ok {
			continue
		}
		if in.Before(out) {
			out, in = in, out
		}
		if _, seen := byChassis[l.ChassisKey]; !seen {
			order = append(order, l.ChassisKey)
		}
		byChassis[l.ChassisKey] = append(byChassis[l.ChassisKey], move{index: i, line: l, out: out, in: in})
	}

	report := Report{Findings: []Finding{}}
	for _, key := range order {
		moves := byChassis[key]
		for a := 0; a < len(moves); a++ {
			for b := a + 1; b < len(moves); b++ {
				kind, ok := classify(moves[a], moves[b])
				if !ok {
					continue
				}
				report.Findings = append(report.Findings, newFinding(kind, key, moves[a], moves[b]))
				if kind == constants.DupMoveExact {
					report.ExactCount++
				} else {
					report.PartialCount++
				}
			}
		}
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		fi, fj := report.Findings[i], report.Findings[j]
		if fi.FirstIndex != fj.FirstIndex {
			return fi.FirstIndex < fj.FirstIndex
		}
		return fi.SecondIndex < fj.SecondIndex
	})

	if len(report.Findings) > 0 {
		d.logger.Info("duplicate moves detected",
			zap.Int("exact", report.ExactCount),
			zap.Int("partial", report.PartialCount),
		)
	}
	return report
}

func classify(a, b move) (string, bool) {
	if a.out.Equal(b.out) && a.in.Equal(b.in) {
		return constants.DupMoveExact, true
	}
	if !a.out.After(b.in) && !b.out.After(a.in) {
		return constants.DupMovePartial, true
	}
	return "", false
}

func newFinding(kind, key string, a, b move) Finding {
	f := Finding{
		Kind:                kind,
		ChassisKey:          key,
		FirstIndex:          a.index,
		SecondIndex:         b.index,
		FirstLineInvoiceNo:  a.line.Source.LineInvoiceNumber,
		SecondLineInvoiceNo: b.line.Source.LineInvoiceNumber,
	}
	span := func(m move) string {
		return m.out.Format(constants.DateLayout) + ".." + m.in.Format(constants.DateLayout)
	}
	if kind == constants.DupMoveExact {
		f.Message = fmt.Sprintf("lines %d and %d bill chassis %s for the same move %s",
			a.index+1, b.index+1, key, span(a))
	} else {
		f.Message = fmt.Sprintf("lines %d and %d bill chassis %s for overlapping moves %s and %s",
			a.index+1, b.index+1, key, span(a), span(b))
	}
	return f
}

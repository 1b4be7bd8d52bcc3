package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/duplicate"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/export"
	"github.com/joseph-ayodele/tms-reconciler/internal/repository"
	"github.com/joseph-ayodele/tms-reconciler/internal/request"
)

var errNoInvoiceStore = common.NewAppError(common.CodeConfig, "invoice persistence is not configured", common.ErrInternal)

// Export is a rendered reconciliation workbook.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
	Result      *entity.ValidationResult
}

// Service ties the engine to stored invoices and their lifecycle. The invoice
// repository is optional; without it requests are validated as sent.
type Service struct {
	engine   *Engine
	invoices repository.InvoiceRepository
	exporter *export.Service
	detector *duplicate.Detector
	policy   Policy
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithInvoiceRepository enables stored invoice lookups and status tracking.
func WithInvoiceRepository(repo repository.InvoiceRepository) ServiceOption {
	return func(s *Service) {
		s.invoices = repo
	}
}

// WithPolicy overrides the default reconciliation policy.
func WithPolicy(p Policy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

func NewService(engine *Engine, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		engine:   engine,
		exporter: export.NewService(logger),
		detector: duplicate.NewDetector(logger),
		policy:   DefaultPolicy(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy used for every run.
func (s *Service) Policy() Policy {
	return s.policy
}

// ValidateInvoice reconciles a request. When the invoice is stored, missing request fields
// are filled from it and its validation status moves in_progress then completed.
func (s *Service) ValidateInvoice(ctx context.Context, req *request.ValidateRequest) (*entity.ValidationResult, error) {
	v, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	return v.result, nil
}

type validated struct {
	header entity.InvoiceHeader
	result *entity.ValidationResult
}

func (s *Service) validate(ctx context.Context, req *request.ValidateRequest) (validated, error) {
	if req == nil {
		return validated{}, common.MalformedRequest("request is empty")
	}
	ctx, runID := common.WithRunID(ctx)
	logger := s.logger.With(zap.String("run_id", runID))

	header, lines := req.Header(), req.Lines()
	stored, err := s.lookup(ctx, header)
	if err != nil {
		return validated{}, err
	}

	track := false
	if stored != nil {
		header, lines = merge(req, header, lines, stored)
		track, err = s.beginValidation(ctx, stored)
		if err != nil {
			return validated{}, err
		}
	}

	result, err := s.engine.Validate(ctx, header, lines, s.policy)
	if err != nil {
		if track {
			s.abortValidation(ctx, logger, stored.Header)
		}
		return validated{}, err
	}

	if track {
		err := s.invoices.UpdateValidationStatus(ctx, header.Vendor, header.InvoiceID,
			constants.ValidationStatusInProgress, constants.ValidationStatusCompleted)
		if err != nil {
			logger.Warn("failed to mark validation completed",
				zap.String("invoice_id", header.InvoiceID), zap.Error(err))
		}
	}
	return validated{header: header, result: result}, nil
}

func (s *Service) lookup(ctx context.Context, header entity.InvoiceHeader) (*entity.Invoice, error) {
	if s.invoices == nil || header.InvoiceID == "" {
		return nil, nil
	}
	inv, err := s.invoices.Get(ctx, header.Vendor, header.InvoiceID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// beginValidation marks a stored invoice in_progress. Submitted invoices are validated
// read-only.
func (s *Service) beginValidation(ctx context.Context, inv *entity.Invoice) (bool, error) {
	h := inv.Header
	if h.Status == constants.InvoiceStatusSubmitted {
		s.logger.Info("validating submitted invoice without status tracking", zap.String("invoice_id", h.InvoiceID))
		return false, nil
	}
	if err := TransitionValidation(h.Status, h.ValidationStatus, constants.ValidationStatusInProgress); err != nil {
		return false, err
	}
	if err := s.invoices.UpdateValidationStatus(ctx, h.Vendor, h.InvoiceID, h.ValidationStatus, constants.ValidationStatusInProgress); err != nil {
		return false, err
	}
	return true, nil
}

// abortValidation puts a failed run's invoice back to the validation status it had
// before the run started. The request context may already be cancelled here.
func (s *Service) abortValidation(ctx context.Context, logger *zap.Logger, h entity.InvoiceHeader) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.invoices.UpdateValidationStatus(ctx, h.Vendor, h.InvoiceID,
		constants.ValidationStatusInProgress, h.ValidationStatus)
	if err != nil {
		logger.Warn("failed to reset validation status after aborted run",
			zap.String("invoice_id", h.InvoiceID),
			zap.String("validation_status", string(h.ValidationStatus)),
			zap.Error(err))
		return
	}
	logger.Info("validation status reset after aborted run",
		zap.String("invoice_id", h.InvoiceID),
		zap.String("validation_status", string(h.ValidationStatus)))
}

// merge fills what the request left out from the stored invoice.
func merge(req *request.ValidateRequest, h entity.InvoiceHeader, lines []entity.InvoiceLineItem, stored *entity.Invoice) (entity.InvoiceHeader, []entity.InvoiceLineItem) {
	sh := stored.Header
	if !req.HasAmountDue() {
		h.AmountDue = sh.AmountDue
	}
	if h.CurrencyCode == "" {
		h.CurrencyCode = sh.CurrencyCode
	}
	if h.AccountCode == "" {
		h.AccountCode = sh.AccountCode
	}
	if h.BillingDate == "" {
		h.BillingDate = sh.BillingDate
	}
	if h.DueDate == "" {
		h.DueDate = sh.DueDate
	}
	h.Status = sh.Status
	h.ValidationStatus = sh.ValidationStatus
	if len(lines) == 0 {
		lines = stored.Lines
	}
	return h, lines
}

// ExportValidation validates the request and renders the result as XLSX.
func (s *Service) ExportValidation(ctx context.Context, req *request.ValidateRequest) (*Export, error) {
	v, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := s.exporter.ValidationXLSX(ctx, v.header, v.result)
	if err != nil {
		return nil, fmt.Errorf("export validation: %w", err)
	}
	name := v.header.InvoiceID
	if name == "" {
		name = v.result.RunID
	}
	return &Export{
		FileName:    fmt.Sprintf("reconciliation-%s.xlsx", name),
		ContentType: constants.XLSXContentType,
		Data:        data,
		Result:      v.result,
	}, nil
}

// DetectDuplicates runs the duplicate-move rules over the request lines, or over the
// stored lines when the request carries none.
func (s *Service) DetectDuplicates(ctx context.Context, req *request.ValidateRequest) (duplicate.Report, error) {
	if req == nil {
		return duplicate.Report{}, common.MalformedRequest("request is empty")
	}
	header, lines := req.Header(), req.Lines()
	if len(lines) == 0 {
		stored, err := s.lookup(ctx, header)
		if err != nil {
			return duplicate.Report{}, err
		}
		if stored != nil {
			lines = stored.Lines
		}
	}
	return s.detector.Detect(lines), nil
}

// SaveInvoice stores an invoice. A new invoice starts as draft; saving an existing one
// moves it to pending_validation. Submitted invoices cannot be saved.
func (s *Service) SaveInvoice(ctx context.Context, inv entity.Invoice) (*entity.InvoiceHeader, error) {
	if s.invoices == nil {
		return nil, errNoInvoiceStore
	}
	h := &inv.Header
	if h.InvoiceID == "" {
		return nil, common.MalformedRequest("invoiceId is required")
	}

	existing, err := s.lookup(ctx, *h)
	if err != nil {
		return nil, err
	}
	var expected constants.InvoiceStatus
	if existing == nil {
		h.Status = constants.InvoiceStatusDraft
		h.ValidationStatus = constants.ValidationStatusPending
	} else {
		if err := Transition(existing.Header.Status, constants.InvoiceStatusPendingValidation); err != nil {
			return nil, err
		}
		expected = existing.Header.Status
		h.Status = constants.InvoiceStatusPendingValidation
		h.ValidationStatus = existing.Header.ValidationStatus
	}

	// The write only lands if nobody moved the invoice since the lookup above.
	if err := s.invoices.Save(ctx, inv, expected); err != nil {
		return nil, err
	}
	s.logger.Info("invoice stored",
		zap.String("vendor", h.Vendor),
		zap.String("invoice_id", h.InvoiceID),
		zap.String("status", string(h.Status)),
	)
	return h, nil
}

// SubmitInvoice moves an invoice to submitted regardless of validation state.
func (s *Service) SubmitInvoice(ctx context.Context, vendor, invoiceID string) (*entity.InvoiceHeader, error) {
	if s.invoices == nil {
		return nil, errNoInvoiceStore
	}
	v, _ := constants.CanonicalVendor(vendor)
	inv, err := s.invoices.Get(ctx, string(v), invoiceID)
	if err != nil {
		return nil, err
	}
	if err := Transition(inv.Header.Status, constants.InvoiceStatusSubmitted); err != nil {
		return nil, err
	}
	if err := s.invoices.UpdateStatus(ctx, string(v), invoiceID, inv.Header.Status, constants.InvoiceStatusSubmitted); err != nil {
		return nil, err
	}
	inv.Header.Status = constants.InvoiceStatusSubmitted
	s.logger.Info("invoice submitted",
		zap.String("vendor", string(v)),
		zap.String("invoice_id", invoiceID),
		zap.String("validation_status", string(inv.Header.ValidationStatus)),
	)
	return &inv.Header, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

// InvoiceRepository persists invoice headers with their owned line items, keyed by
// (vendor, invoice ID). Every write is compare-and-set on the current status.
type InvoiceRepository interface {
	Get(ctx context.Context, vendor, invoiceID string) (*entity.Invoice, error)
	// Save writes inv only while the stored status still equals expected. An empty
	// expected status means the invoice must not exist yet. A lost race returns
	// ErrInvalidTransition and leaves the stored invoice untouched. Updates keep the
	// stored validation status, which only UpdateValidationStatus moves.
	Save(ctx context.Context, inv entity.Invoice, expected constants.InvoiceStatus) error
	UpdateStatus(ctx context.Context, vendor, invoiceID string, from, to constants.InvoiceStatus) error
	UpdateValidationStatus(ctx context.Context, vendor, invoiceID string, from, to constants.ValidationStatus) error
}

type invoiceRepository struct {
	drv    *entsql.Driver
	logger *zap.Logger
	now    func() time.Time
}

func NewInvoiceRepository(drv *entsql.Driver, logger *zap.Logger) InvoiceRepository {
	return &invoiceRepository{
		drv:    drv,
		logger: logger,
		now:    time.Now,
	}
}

func (r *invoiceRepository) Get(ctx context.Context, vendor, invoiceID string) (*entity.Invoice, error) {
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(tableInvoices)
	query, args := b.Select(
		t.C("account_code"), t.C("billing_date"), t.C("due_date"), t.C("currency_code"),
		t.C("amount_due"), t.C("status"), t.C("validation_status"),
	).From(t).Where(entsql.And(
		entsql.EQ(t.C("vendor"), vendor),
		entsql.EQ(t.C("invoice_id"), invoiceID),
	)).Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to load invoice", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("%w: get invoice: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: get invoice: %w", common.ErrDatabase, err)
		}
		return nil, common.NewAppError(common.CodeNotFound,
			fmt.Sprintf("invoice %s/%s not found", vendor, invoiceID), common.ErrNotFound)
	}

	inv := &entity.Invoice{Header: entity.InvoiceHeader{InvoiceID: invoiceID, Vendor: vendor}}
	h := &inv.Header
	var status, validationStatus string
	if err := rows.Scan(&h.AccountCode, &h.BillingDate, &h.DueDate, &h.CurrencyCode,
		&h.AmountDue, &status, &validationStatus); err != nil {
		return nil, fmt.Errorf("%w: scan invoice: %w", common.ErrDatabase, err)
	}
	h.Status = constants.InvoiceStatus(status)
	h.ValidationStatus = constants.ValidationStatus(validationStatus)
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: get invoice: %w", common.ErrDatabase, err)
	}

	lines, err := r.lines(ctx, vendor, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (r *invoiceRepository) lines(ctx context.Context, vendor, invoiceID string) ([]entity.InvoiceLineItem, error) {
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(tableLines)
	query, args := b.Select(
		t.C("line_invoice_number"), t.C("chassis_identifier"), t.C("container_out_identifier"),
		t.C("container_in_identifier"), t.C("date_out"), t.C("date_in"), t.C("invoice_total"),
		t.C("dispute_status"), t.C("row_data"),
	).From(t).Where(entsql.And(
		entsql.EQ(t.C("vendor"), vendor),
		entsql.EQ(t.C("invoice_id"), invoiceID),
	)).OrderBy(t.C("seq")).Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("%w: list line items: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.InvoiceLineItem
	for rows.Next() {
		var (
			item            entity.InvoiceLineItem
			dateOut, dateIn string
			dispute         sql.NullString
			rowData         string
		)
		if err := rows.Scan(&item.LineInvoiceNumber, &item.ChassisIdentifier, &item.ContainerOutIdentifier,
			&item.ContainerInIdentifier, &dateOut, &dateIn, &item.InvoiceTotal, &dispute, &rowData); err != nil {
			return nil, fmt.Errorf("%w: scan line item: %w", common.ErrDatabase, err)
		}
		item.DateOut = decodeRaw(dateOut)
		item.DateIn = decodeRaw(dateIn)
		if dispute.Valid {
			ds := constants.DisputeStatus(dispute.String)
			item.DisputeStatus = &ds
		}
		if rowData != "" && rowData != "{}" {
			if err := json.Unmarshal([]byte(rowData), &item.RowData); err != nil {
				r.logger.Warn("discarding unreadable row data", zap.String("invoice_id", invoiceID), zap.Error(err))
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list line items: %w", common.ErrDatabase, err)
	}
	return out, nil
}

// Save upserts the header and replaces the line items in one transaction.
func (r *invoiceRepository) Save(ctx context.Context, inv entity.Invoice, expected constants.InvoiceStatus) error {
	h := inv.Header
	if h.Status == "" {
		h.Status = constants.InvoiceStatusDraft
	}
	if h.ValidationStatus == "" {
		h.ValidationStatus = constants.ValidationStatusPending
	}
	now := r.now().UTC().Format(time.RFC3339)

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	rollback := func(err error) error {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		r.logger.Error("failed to save invoice", zap.String("invoice_id", h.InvoiceID), zap.Error(err))
		return fmt.Errorf("%w: save invoice: %w", common.ErrDatabase, err)
	}

	b := entsql.Dialect(r.drv.Dialect())
	conflict := []entsql.ConflictOption{entsql.ConflictColumns("vendor", "invoice_id"), entsql.DoNothing()}
	if expected != "" {
		conflict = []entsql.ConflictOption{
			entsql.ConflictColumns("vendor", "invoice_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("account_code")
				u.SetExcluded("billing_date")
				u.SetExcluded("due_date")
				u.SetExcluded("currency_code")
				u.SetExcluded("amount_due")
				u.SetExcluded("status")
				u.SetExcluded("updated_at")
			}),
			// Qualified with the target table by the builder.
			entsql.UpdateWhere(entsql.EQ("status", string(expected))),
		}
	}
	query, args := b.Insert(tableInvoices).
		Columns("vendor", "invoice_id", "account_code", "billing_date", "due_date", "currency_code",
			"amount_due", "status", "validation_status", "created_at", "updated_at").
		Values(h.Vendor, h.InvoiceID, h.AccountCode, h.BillingDate, h.DueDate, h.CurrencyCode,
			h.AmountDue.String(), string(h.Status), string(h.ValidationStatus), now, now).
		OnConflict(conflict...).Query()
	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return rollback(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rollback(err)
	}
	if n == 0 {
		if rerr := tx.Rollback(); rerr != nil {
			r.logger.Warn("rollback after lost save failed", zap.String("invoice_id", h.InvoiceID), zap.Error(rerr))
		}
		return staleInvoice(h.Vendor, h.InvoiceID, expected)
	}

	query, args = b.Delete(tableLines).Where(entsql.And(
		entsql.EQ("vendor", h.Vendor),
		entsql.EQ("invoice_id", h.InvoiceID),
	)).Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return rollback(err)
	}

	if len(inv.Lines) > 0 {
		ins := b.Insert(tableLines).Columns("vendor", "invoice_id", "seq", "line_invoice_number",
			"chassis_identifier", "container_out_identifier", "container_in_identifier",
			"date_out", "date_in", "invoice_total", "dispute_status", "row_data")
		for i, item := range inv.Lines {
			var dispute any
			if item.DisputeStatus != nil {
				dispute = string(*item.DisputeStatus)
			}
			ins.Values(h.Vendor, h.InvoiceID, i, item.LineInvoiceNumber,
				item.ChassisIdentifier, item.ContainerOutIdentifier, item.ContainerInIdentifier,
				encodeRaw(item.DateOut), encodeRaw(item.DateIn), item.InvoiceTotal.String(),
				dispute, encodeRowData(item.RowData))
		}
		query, args = ins.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return rollback(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}
	r.logger.Info("invoice saved",
		zap.String("vendor", h.Vendor),
		zap.String("invoice_id", h.InvoiceID),
		zap.String("status", string(h.Status)),
		zap.Int("line_count", len(inv.Lines)),
	)
	return nil
}

func staleInvoice(vendor, invoiceID string, expected constants.InvoiceStatus) error {
	if expected == "" {
		return common.NewAppError(common.CodeTransition,
			fmt.Sprintf("invoice %s/%s already exists", vendor, invoiceID), common.ErrInvalidTransition)
	}
	return common.NewAppError(common.CodeTransition,
		fmt.Sprintf("invoice %s/%s is missing or no longer status=%q", vendor, invoiceID, expected),
		common.ErrInvalidTransition)
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, vendor, invoiceID string, from, to constants.InvoiceStatus) error {
	return r.compareAndSet(ctx, vendor, invoiceID, "status", string(from), string(to))
}

func (r *invoiceRepository) UpdateValidationStatus(ctx context.Context, vendor, invoiceID string, from, to constants.ValidationStatus) error {
	return r.compareAndSet(ctx, vendor, invoiceID, "validation_status", string(from), string(to))
}

func (r *invoiceRepository) compareAndSet(ctx context.Context, vendor, invoiceID, column, from, to string) error {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Update(tableInvoices).
		Set(column, to).
		Set("updated_at", r.now().UTC().Format(time.RFC3339)).
		Where(entsql.And(
			entsql.EQ("vendor", vendor),
			entsql.EQ("invoice_id", invoiceID),
			entsql.EQ(column, from),
		)).Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to update invoice", zap.String("invoice_id", invoiceID), zap.String("column", column), zap.Error(err))
		return fmt.Errorf("%w: update %s: %w", common.ErrDatabase, column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", common.ErrDatabase, column, err)
	}
	if n == 0 {
		return common.NewAppError(common.CodeTransition,
			fmt.Sprintf("invoice %s/%s is missing or no longer %s=%q", vendor, invoiceID, column, from),
			common.ErrInvalidTransition)
	}
	r.logger.Debug("invoice updated", zap.String("invoice_id", invoiceID), zap.String(column, to))
	return nil
}

// encodeRaw stores an extracted date value as JSON so its original shape survives.
func encodeRaw(v any) string {
	if t, ok := v.(time.Time); ok {
		v = t.Format(time.RFC3339)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeRaw(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func encodeRowData(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

func sampleInvoice() entity.Invoice {
	disputed := constants.DisputeDisputed
	return entity.Invoice{
		Header: entity.InvoiceHeader{
			InvoiceID:    "INV-1001",
			Vendor:       "DCLI",
			AccountCode:  "ACC-9",
			BillingDate:  "2024-03-31",
			DueDate:      "2024-04-30",
			CurrencyCode: "USD",
			AmountDue:    decimal.RequireFromString("150.25"),
		},
		Lines: []entity.InvoiceLineItem{
			{
				LineInvoiceNumber: "L1",
				ChassisIdentifier: "ABCD 123456",
				DateOut:           "2024-03-01",
				DateIn:            "2024-03-05",
				InvoiceTotal:      decimal.RequireFromString("100.00"),
				RowData:           map[string]any{"Pool": "SOUTH"},
			},
			{
				LineInvoiceNumber:      "L2",
				ContainerOutIdentifier: "MSCU1234567",
				DateOut:                json.Number("45356"),
				InvoiceTotal:           decimal.RequireFromString("50.25"),
				DisputeStatus:          &disputed,
			},
		},
	}
}

// invoiceRepos runs each case against both implementations.
func invoiceRepos(t *testing.T) map[string]InvoiceRepository {
	return map[string]InvoiceRepository{
		"sqlite": NewInvoiceRepository(newSQLite(t), zap.NewNop()),
		"memory": NewMemoryInvoiceRepository(),
	}
}

func TestInvoiceSaveAndGet(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, sampleInvoice(), ""))

			got, err := repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, constants.InvoiceStatusDraft, got.Header.Status)
			assert.Equal(t, constants.ValidationStatusPending, got.Header.ValidationStatus)
			assert.Equal(t, "ACC-9", got.Header.AccountCode)
			assert.True(t, got.Header.AmountDue.Equal(decimal.RequireFromString("150.25")))

			require.Len(t, got.Lines, 2)
			assert.Equal(t, "L1", got.Lines[0].LineInvoiceNumber)
			assert.Equal(t, "ABCD 123456", got.Lines[0].ChassisIdentifier)
			assert.Equal(t, "2024-03-01", got.Lines[0].DateOut)
			assert.Equal(t, "SOUTH", got.Lines[0].RowData["Pool"])
			assert.Nil(t, got.Lines[0].DisputeStatus)
			assert.Equal(t, json.Number("45356"), got.Lines[1].DateOut)
			assert.Nil(t, got.Lines[1].DateIn)
			require.NotNil(t, got.Lines[1].DisputeStatus)
			assert.Equal(t, constants.DisputeDisputed, *got.Lines[1].DisputeStatus)
		})
	}
}

func TestInvoiceSaveReplacesLines(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := sampleInvoice()
			require.NoError(t, repo.Save(ctx, inv, ""))

			inv.Header.Status = constants.InvoiceStatusPendingValidation
			inv.Header.AmountDue = decimal.RequireFromString("100")
			inv.Lines = inv.Lines[:1]
			require.NoError(t, repo.Save(ctx, inv, constants.InvoiceStatusDraft))

			got, err := repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, constants.InvoiceStatusPendingValidation, got.Header.Status)
			assert.True(t, got.Header.AmountDue.Equal(decimal.NewFromInt(100)))
			assert.Len(t, got.Lines, 1)
		})
	}
}

func TestInvoiceGetNotFound(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), "DCLI", "missing")
			assert.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestInvoiceStatusCompareAndSet(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, sampleInvoice(), ""))

			require.NoError(t, repo.UpdateStatus(ctx, "DCLI", "INV-1001",
				constants.InvoiceStatusDraft, constants.InvoiceStatusPendingValidation))
			err := repo.UpdateStatus(ctx, "DCLI", "INV-1001",
				constants.InvoiceStatusDraft, constants.InvoiceStatusSubmitted)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)

			require.NoError(t, repo.UpdateValidationStatus(ctx, "DCLI", "INV-1001",
				constants.ValidationStatusPending, constants.ValidationStatusInProgress))
			err = repo.UpdateValidationStatus(ctx, "DCLI", "INV-1001",
				constants.ValidationStatusPending, constants.ValidationStatusInProgress)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)

			got, err := repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, constants.InvoiceStatusPendingValidation, got.Header.Status)
			assert.Equal(t, constants.ValidationStatusInProgress, got.Header.ValidationStatus)

			err = repo.UpdateStatus(ctx, "DCLI", "missing",
				constants.InvoiceStatusDraft, constants.InvoiceStatusPendingValidation)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
		})
	}
}

func TestInvoiceSaveIsConditionalOnStatus(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := sampleInvoice()
			require.NoError(t, repo.Save(ctx, inv, ""))

			err := repo.Save(ctx, inv, "")
			assert.ErrorIs(t, err, common.ErrInvalidTransition, "create must not overwrite")

			require.NoError(t, repo.UpdateStatus(ctx, "DCLI", "INV-1001",
				constants.InvoiceStatusDraft, constants.InvoiceStatusSubmitted))
			require.NoError(t, repo.UpdateValidationStatus(ctx, "DCLI", "INV-1001",
				constants.ValidationStatusPending, constants.ValidationStatusInProgress))

			inv.Header.Status = constants.InvoiceStatusPendingValidation
			inv.Header.AmountDue = decimal.RequireFromString("1")
			inv.Lines = nil
			err = repo.Save(ctx, inv, constants.InvoiceStatusDraft)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
			assert.NotErrorIs(t, err, common.ErrDatabase)

			got, err := repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, constants.InvoiceStatusSubmitted, got.Header.Status)
			assert.True(t, got.Header.AmountDue.Equal(decimal.RequireFromString("150.25")))
			assert.Len(t, got.Lines, 2)

			inv.Header.ValidationStatus = constants.ValidationStatusPending
			require.NoError(t, repo.Save(ctx, inv, constants.InvoiceStatusSubmitted))
			got, err = repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, constants.ValidationStatusInProgress, got.Header.ValidationStatus, "updates keep the stored validation status")
			assert.Empty(t, got.Lines)
		})
	}
}

func TestInvoiceSaveKeepsFullPrecision(t *testing.T) {
	for name, repo := range invoiceRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := sampleInvoice()
			inv.Header.AmountDue = decimal.RequireFromString("150.255")
			inv.Lines[0].InvoiceTotal = decimal.RequireFromString("0.004")
			require.NoError(t, repo.Save(ctx, inv, ""))

			got, err := repo.Get(ctx, "DCLI", "INV-1001")
			require.NoError(t, err)
			assert.Equal(t, "150.255", got.Header.AmountDue.String())
			require.Len(t, got.Lines, 2)
			assert.Equal(t, "0.004", got.Lines[0].InvoiceTotal.String())
		})
	}
}

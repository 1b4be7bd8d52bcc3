package request

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
)

func TestParseValidRequest(t *testing.T) {
	body := []byte(`{
		"invoiceId": " INV-1 ",
		"accountCode": "ACC",
		"billingDate": "2024-03-31",
		"dueDate": 45412,
		"vendor": "Direct ChassisLink",
		"currencyCode": "usd",
		"amountDue": "125.50",
		"lineItems": [
			{"lineInvoiceNumber": "L1", "chassisIdentifier": "ABCD 123456", "dateOut": "2024-03-01", "dateIn": 45356, "invoiceTotal": 62.75, "rowData": {"Pool": "SOUTH"}},
			{"lineInvoiceNumber": "L2", "containerOutIdentifier": null, "disputeStatus": "disputed", "invoiceTotal": null}
		]
	}`)

	req, err := Parse(body)
	require.NoError(t, err)

	h := req.Header()
	assert.Equal(t, "INV-1", h.InvoiceID)
	assert.Equal(t, "DCLI", h.Vendor)
	assert.Equal(t, "USD", h.CurrencyCode)
	assert.Equal(t, "45412", h.DueDate)
	assert.True(t, h.AmountDue.Equal(decimal.RequireFromString("125.50")))
	assert.True(t, req.HasAmountDue())

	lines := req.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "ABCD 123456", lines[0].ChassisIdentifier)
	assert.Equal(t, json.Number("45356"), lines[0].DateIn)
	assert.Equal(t, "SOUTH", lines[0].RowData["Pool"])
	assert.True(t, lines[0].InvoiceTotal.Equal(decimal.RequireFromString("62.75")))
	assert.True(t, lines[1].InvoiceTotal.IsZero())
	require.NotNil(t, lines[1].DisputeStatus)
	assert.Equal(t, constants.DisputeDisputed, *lines[1].DisputeStatus)
}

func TestParseMinimalRequest(t *testing.T) {
	req, err := Parse([]byte(`{"lineItems": []}`))
	require.NoError(t, err)
	assert.Empty(t, req.Lines())
	assert.False(t, req.HasAmountDue())
	assert.Equal(t, string(constants.DefaultVendor), req.Header().Vendor)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"not json", `{"lineItems": [`},
		{"trailing data", `{"lineItems": []} {}`},
		{"not an object", `[1, 2]`},
		{"missing lineItems", `{"invoiceId": "INV-1"}`},
		{"lineItems not array", `{"lineItems": {"a": 1}}`},
		{"line item not object", `{"lineItems": ["L1"]}`},
		{"bad dispute status", `{"lineItems": [{"disputeStatus": "maybe"}]}`},
		{"bad amount", `{"amountDue": "lots", "lineItems": []}`},
		{"date as object", `{"lineItems": [{"dateOut": {"y": 2024}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, req)
			assert.ErrorIs(t, err, common.ErrMalformedRequest)

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, common.CodeMalformedRequest, appErr.Code)
		})
	}
}

func TestSchemaViolationMentionsLocation(t *testing.T) {
	_, err := Parse([]byte(`{"lineItems": [{}, 7]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/lineItems/1")
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef([]byte(`{"vendor": "DCLI", "invoiceId": "INV-1"}`))
	require.NoError(t, err)
	assert.Equal(t, InvoiceRef{Vendor: "DCLI", InvoiceID: "INV-1"}, ref)

	_, err = ParseRef([]byte(`{"vendor": "DCLI"}`))
	assert.ErrorIs(t, err, common.ErrMalformedRequest)
}

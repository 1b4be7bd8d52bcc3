package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/tms-reconciler/constants"
)

// InvoiceHeader represents one vendor invoice for data transfer between layers.
type InvoiceHeader struct {
	InvoiceID        string                     `json:"invoiceId"`
	Vendor           string                     `json:"vendor,omitempty"`
	AccountCode      string                     `json:"accountCode,omitempty"`
	BillingDate      string                     `json:"billingDate"`
	DueDate          string                     `json:"dueDate"`
	CurrencyCode     string                     `json:"currencyCode,omitempty"`
	AmountDue        decimal.Decimal            `json:"amountDue"`
	Status           constants.InvoiceStatus    `json:"status,omitempty"`
	ValidationStatus constants.ValidationStatus `json:"validationStatus,omitempty"`
}

// InvoiceLineItem is one billable unit on an invoice. DateOut and DateIn carry the raw
// extracted value (ISO string, spreadsheet serial or time.Time); RowData keeps the original
// spreadsheet columns for audit and is never interpreted.
type InvoiceLineItem struct {
	LineInvoiceNumber      string                   `json:"lineInvoiceNumber"`
	ChassisIdentifier      string                   `json:"chassisIdentifier"`
	ContainerOutIdentifier string                   `json:"containerOutIdentifier"`
	ContainerInIdentifier  string                   `json:"containerInIdentifier"`
	DateOut                any                      `json:"dateOut"`
	DateIn                 any                      `json:"dateIn"`
	InvoiceTotal           decimal.Decimal          `json:"invoiceTotal"`
	DisputeStatus          *constants.DisputeStatus `json:"disputeStatus,omitempty"`
	RowData                map[string]any           `json:"rowData,omitempty"`
}

// Invoice is a header with its owned line items.
type Invoice struct {
	Header InvoiceHeader     `json:"header"`
	Lines  []InvoiceLineItem `json:"lineItems"`
}

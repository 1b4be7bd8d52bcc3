package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

// ValidateRequest is the body of validate_dcli_invoice and the invoice save call.
type ValidateRequest struct {
	InvoiceID    string           `json:"invoiceId"`
	AccountCode  string           `json:"accountCode"`
	BillingDate  any              `json:"billingDate"`
	DueDate      any              `json:"dueDate"`
	Vendor       string           `json:"vendor,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
	AmountDue    *decimal.Decimal `json:"amountDue,omitempty"`
	LineItems    []LineItem       `json:"lineItems"`
}

// LineItem is one line as it arrives on the wire.
type LineItem struct {
	LineInvoiceNumber      string           `json:"lineInvoiceNumber"`
	ChassisIdentifier      string           `json:"chassisIdentifier"`
	ContainerOutIdentifier string           `json:"containerOutIdentifier"`
	ContainerInIdentifier  string           `json:"containerInIdentifier"`
	DateOut                any              `json:"dateOut"`
	DateIn                 any              `json:"dateIn"`
	InvoiceTotal           *decimal.Decimal `json:"invoiceTotal,omitempty"`
	DisputeStatus          *string          `json:"disputeStatus,omitempty"`
	RowData                map[string]any   `json:"rowData,omitempty"`
}

// InvoiceRef names a stored invoice.
type InvoiceRef struct {
	Vendor    string `json:"vendor"`
	InvoiceID string `json:"invoiceId"`
}

// Parse checks body against the request schema and decodes it. Every failure is a
// MALFORMED_REQUEST AppError; no partial request is returned.
func Parse(body []byte) (*ValidateRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, common.MalformedRequest("request body is empty")
	}

	var doc any
	if err := decode(body, &doc); err != nil {
		return nil, common.MalformedRequest("request body is not valid JSON: %v", err)
	}

	schema, err := requestSchema()
	if err != nil {
		return nil, common.NewAppError(common.CodeMalformedRequest, "request schema unavailable", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, common.MalformedRequest("request does not match schema: %s", schemaViolations(err))
	}

	var req ValidateRequest
	if err := decode(body, &req); err != nil {
		return nil, common.MalformedRequest("request body could not be decoded: %v", err)
	}
	return &req, nil
}

// ParseRef decodes an {vendor, invoiceId} body.
func ParseRef(body []byte) (InvoiceRef, error) {
	var ref InvoiceRef
	if err := decode(body, &ref); err != nil {
		return ref, common.MalformedRequest("request body is not valid JSON: %v", err)
	}
	if strings.TrimSpace(ref.InvoiceID) == "" {
		return ref, common.MalformedRequest("invoiceId is required")
	}
	return ref, nil
}

// decode keeps numbers as json.Number so spreadsheet serials are not rounded.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	return nil
}

// VendorCode returns the canonical vendor, defaulting when none was sent.
func (r *ValidateRequest) VendorCode() string {
	v, _ := constants.CanonicalVendor(r.Vendor)
	return string(v)
}

// Header builds the invoice header. A missing amount stays zero and is reported by
// the header checks.
func (r *ValidateRequest) Header() entity.InvoiceHeader {
	h := entity.InvoiceHeader{
		InvoiceID:    strings.TrimSpace(r.InvoiceID),
		Vendor:       r.VendorCode(),
		AccountCode:  strings.TrimSpace(r.AccountCode),
		BillingDate:  dateText(r.BillingDate),
		DueDate:      dateText(r.DueDate),
		CurrencyCode: strings.ToUpper(strings.TrimSpace(r.CurrencyCode)),
	}
	if r.AmountDue != nil {
		h.AmountDue = *r.AmountDue
	}
	return h
}

// HasAmountDue reports whether the request carried an amount.
func (r *ValidateRequest) HasAmountDue() bool {
	return r.AmountDue != nil
}

// Lines converts the wire lines to entities, preserving order.
func (r *ValidateRequest) Lines() []entity.InvoiceLineItem {
	out := make([]entity.InvoiceLineItem, len(r.LineItems))
	for i, li := range r.LineItems {
		item := entity.InvoiceLineItem{
			LineInvoiceNumber:      li.LineInvoiceNumber,
			ChassisIdentifier:      li.ChassisIdentifier,
			ContainerOutIdentifier: li.ContainerOutIdentifier,
			ContainerInIdentifier:  li.ContainerInIdentifier,
			DateOut:                li.DateOut,
			DateIn:                 li.DateIn,
			RowData:                li.RowData,
		}
		if li.InvoiceTotal != nil {
			item.InvoiceTotal = *li.InvoiceTotal
		}
		if li.DisputeStatus != nil {
			ds := constants.DisputeStatus(*li.DisputeStatus)
			item.DisputeStatus = &ds
		}
		out[i] = item
	}
	return out
}

// Invoice returns the request as an invoice aggregate.
func (r *ValidateRequest) Invoice() entity.Invoice {
	return entity.Invoice{Header: r.Header(), Lines: r.Lines()}
}

func dateText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

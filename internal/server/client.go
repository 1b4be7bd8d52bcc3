package server

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/tms-reconciler/internal/duplicate"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

// Client calls reconcile.v1.ReconcileService with JSON bodies.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, body []byte, out any, opts ...grpc.CallOption) error {
	in := json.RawMessage(body)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &in, out, opts...)
}

func (c *Client) ValidateInvoice(ctx context.Context, body []byte, opts ...grpc.CallOption) (*entity.ValidationResult, error) {
	out := new(entity.ValidationResult)
	if err := c.invoke(ctx, "ValidateInvoice", body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExportValidation(ctx context.Context, body []byte, opts ...grpc.CallOption) (*ExportResponse, error) {
	out := new(ExportResponse)
	if err := c.invoke(ctx, "ExportValidation", body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DetectDuplicates(ctx context.Context, body []byte, opts ...grpc.CallOption) (*duplicate.Report, error) {
	out := new(duplicate.Report)
	if err := c.invoke(ctx, "DetectDuplicates", body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveInvoice(ctx context.Context, body []byte, opts ...grpc.CallOption) (*entity.InvoiceHeader, error) {
	out := new(entity.InvoiceHeader)
	if err := c.invoke(ctx, "SaveInvoice", body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitInvoice(ctx context.Context, vendor, invoiceID string, opts ...grpc.CallOption) (*entity.InvoiceHeader, error) {
	body, err := json.Marshal(map[string]string{"vendor": vendor, "invoiceId": invoiceID})
	if err != nil {
		return nil, err
	}
	out := new(entity.InvoiceHeader)
	if err := c.invoke(ctx, "SubmitInvoice", body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

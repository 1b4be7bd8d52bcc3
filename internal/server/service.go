package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/duplicate"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/tms-reconciler/internal/request"
)

const ServiceName = "reconcile.v1.ReconcileService"

// ReconcileServiceServer is the server API of reconcile.v1.ReconcileService. Requests
// are raw JSON bodies; the request layer owns their structural validation.
type ReconcileServiceServer interface {
	ValidateInvoice(context.Context, *json.RawMessage) (*entity.ValidationResult, error)
	ExportValidation(context.Context, *json.RawMessage) (*ExportResponse, error)
	DetectDuplicates(context.Context, *json.RawMessage) (*duplicate.Report, error)
	SaveInvoice(context.Context, *json.RawMessage) (*entity.InvoiceHeader, error)
	SubmitInvoice(context.Context, *json.RawMessage) (*entity.InvoiceHeader, error)
}

// RegisterReconcileServiceServer registers srv on s.
func RegisterReconcileServiceServer(s grpc.ServiceRegistrar, srv ReconcileServiceServer) {
	s.RegisterService(&ReconcileServiceDesc, srv)
}

func unary[Resp any](method string, call func(ReconcileServiceServer, context.Context, *json.RawMessage) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(json.RawMessage)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReconcileServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReconcileServiceServer), ctx, req.(*json.RawMessage))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReconcileServiceDesc is the hand-written descriptor of reconcile.v1.ReconcileService.
var ReconcileServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReconcileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateInvoice", Handler: unary("ValidateInvoice", ReconcileServiceServer.ValidateInvoice)},
		{MethodName: "ExportValidation", Handler: unary("ExportValidation", ReconcileServiceServer.ExportValidation)},
		{MethodName: "DetectDuplicates", Handler: unary("DetectDuplicates", ReconcileServiceServer.DetectDuplicates)},
		{MethodName: "SaveInvoice", Handler: unary("SaveInvoice", ReconcileServiceServer.SaveInvoice)},
		{MethodName: "SubmitInvoice", Handler: unary("SubmitInvoice", ReconcileServiceServer.SubmitInvoice)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reconcile/v1/reconcile.json",
}

// ReconcileService adapts reconcile.Service to gRPC.
type ReconcileService struct {
	svc    *reconcile.Service
	logger *zap.Logger
}

func NewReconcileService(svc *reconcile.Service, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{svc: svc, logger: logger}
}

func (s *ReconcileService) ValidateInvoice(ctx context.Context, in *json.RawMessage) (*entity.ValidationResult, error) {
	req, err := request.Parse(*in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	res, err := s.svc.ValidateInvoice(ctx, req)
	if err != nil {
		s.logger.Warn("validate invoice failed", zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return res, nil
}

func (s *ReconcileService) ExportValidation(ctx context.Context, in *json.RawMessage) (*ExportResponse, error) {
	req, err := request.Parse(*in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := s.svc.ExportValidation(ctx, req)
	if err != nil {
		s.logger.Error("export.xlsx.failed", zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return newExportResponse(out), nil
}

func (s *ReconcileService) DetectDuplicates(ctx context.Context, in *json.RawMessage) (*duplicate.Report, error) {
	req, err := request.Parse(*in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	report, err := s.svc.DetectDuplicates(ctx, req)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return &report, nil
}

func (s *ReconcileService) SaveInvoice(ctx context.Context, in *json.RawMessage) (*entity.InvoiceHeader, error) {
	req, err := request.Parse(*in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	h, err := s.svc.SaveInvoice(ctx, req.Invoice())
	if err != nil {
		s.logger.Warn("save invoice failed", zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return h, nil
}

func (s *ReconcileService) SubmitInvoice(ctx context.Context, in *json.RawMessage) (*entity.InvoiceHeader, error) {
	ref, err := request.ParseRef(*in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	h, err := s.svc.SubmitInvoice(ctx, ref.Vendor, ref.InvoiceID)
	if err != nil {
		s.logger.Warn("submit invoice failed", zap.String("invoice_id", ref.InvoiceID), zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return h, nil
}

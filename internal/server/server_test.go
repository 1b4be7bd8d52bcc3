package server

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/tms-reconciler/internal/repository"
)

const validateBody = `{
	"invoiceId": "INV-1001",
	"vendor": "DCLI",
	"billingDate": "2024-03-31",
	"dueDate": "2024-04-30",
	"amountDue": 125,
	"lineItems": [
		{"lineInvoiceNumber": "L1", "chassisIdentifier": "ABCD-123456", "containerOutIdentifier": "MSCU1234567", "dateOut": "2024-03-01", "dateIn": "2024-03-05"},
		{"lineInvoiceNumber": "L2", "chassisIdentifier": "ABCD-123456", "dateOut": "2024-03-02", "dateIn": "2024-03-04"}
	]
}`

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newReconcileService(t *testing.T) *reconcile.Service {
	t.Helper()
	store := repository.NewMemoryShipmentStore(entity.ShipmentRecord{
		LDNumber:           "LD1",
		ChassisNumber:      "ABCD123456",
		ContainerNumber:    "MSCU1234567",
		PickupActualDate:   day("2024-03-01"),
		DeliveryActualDate: day("2024-03-05"),
	})
	engine := reconcile.NewEngine(candidates.NewFinder(store, nil), nil)
	return reconcile.NewService(engine, nil, reconcile.WithInvoiceRepository(repository.NewMemoryInvoiceRepository()))
}

func newBufconnClient(t *testing.T, logger *zap.Logger) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(logger)
	RegisterReconcileServiceServer(srv, NewReconcileService(newReconcileService(t), logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestGRPCValidateInvoice(t *testing.T) {
	client := newBufconnClient(t, zap.NewNop())
	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDMetadataKey, "req-42")

	var header metadata.MD
	res, err := client.ValidateInvoice(ctx, []byte(validateBody), grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDMetadataKey))
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, constants.MatchExact, res.Rows[0].MatchType)
	require.NotNil(t, res.Rows[0].TMSMatch)
	assert.Equal(t, "LD1", res.Rows[0].TMSMatch.LDNum)
	assert.Equal(t, 2, res.Summary.TotalRows)
}

func TestGRPCMalformedRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	client := newBufconnClient(t, zap.New(core))

	_, err := client.ValidateInvoice(context.Background(), []byte(`{"invoiceId": "X"}`))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "lineItems")

	entries := logs.FilterMessage("gRPC request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/"+ServiceName+"/ValidateInvoice", entries[0].ContextMap()["method"])
	assert.Equal(t, "InvalidArgument", entries[0].ContextMap()["code"])
}

func TestGRPCExportValidation(t *testing.T) {
	client := newBufconnClient(t, zap.NewNop())
	out, err := client.ExportValidation(context.Background(), []byte(validateBody))
	require.NoError(t, err)
	assert.Equal(t, "reconciliation-INV-1001.xlsx", out.FileName)
	assert.Equal(t, constants.XLSXContentType, out.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(out.Xlsx))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, 2, f.SheetCount)
}

func TestGRPCDetectDuplicates(t *testing.T) {
	client := newBufconnClient(t, zap.NewNop())
	report, err := client.DetectDuplicates(context.Background(), []byte(validateBody))
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, constants.DupMovePartial, report.Findings[0].Kind)
	assert.Equal(t, 1, report.PartialCount)
}

func TestGRPCInvoiceLifecycle(t *testing.T) {
	client := newBufconnClient(t, zap.NewNop())
	ctx := context.Background()

	h, err := client.SaveInvoice(ctx, []byte(validateBody))
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceStatusDraft, h.Status)

	_, err = client.SubmitInvoice(ctx, "DCLI", "INV-1001")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.SaveInvoice(ctx, []byte(validateBody))
	require.NoError(t, err)
	h, err = client.SubmitInvoice(ctx, "DCLI", "INV-1001")
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceStatusSubmitted, h.Status)

	_, err = client.SubmitInvoice(ctx, "DCLI", "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

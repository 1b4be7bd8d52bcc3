package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

type memoryShipmentStore struct {
	mu      sync.RWMutex
	records []entity.ShipmentRecord
}

// NewMemoryShipmentStore serves records from memory in insertion order.
func NewMemoryShipmentStore(records ...entity.ShipmentRecord) ShipmentRepository {
	s := &memoryShipmentStore{}
	s.records = append(s.records, records...)
	return s
}

func (s *memoryShipmentStore) FindShipments(ctx context.Context, q candidates.ShipmentQuery) ([]entity.ShipmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.ShipmentRecord
	for _, rec := range s.records {
		if !q.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *memoryShipmentStore) InsertShipments(_ context.Context, records []entity.ShipmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

type invoiceKey struct {
	vendor    string
	invoiceID string
}

type memoryInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[invoiceKey]entity.Invoice
}

// NewMemoryInvoiceRepository keeps invoices in a map. Values are copied on the way in
// and out so callers cannot alias stored state.
func NewMemoryInvoiceRepository() InvoiceRepository {
	return &memoryInvoiceRepository{invoices: make(map[invoiceKey]entity.Invoice)}
}

func (r *memoryInvoiceRepository) Get(_ context.Context, vendor, invoiceID string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[invoiceKey{vendor, invoiceID}]
	if !ok {
		return nil, common.NewAppError(common.CodeNotFound,
			fmt.Sprintf("invoice %s/%s not found", vendor, invoiceID), common.ErrNotFound)
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (r *memoryInvoiceRepository) Save(_ context.Context, inv entity.Invoice, expected constants.InvoiceStatus) error {
	if inv.Header.Status == "" {
		inv.Header.Status = constants.InvoiceStatusDraft
	}
	if inv.Header.ValidationStatus == "" {
		inv.Header.ValidationStatus = constants.ValidationStatusPending
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invoiceKey{inv.Header.Vendor, inv.Header.InvoiceID}
	current, ok := r.invoices[key]
	if ok {
		if current.Header.Status != expected {
			return staleInvoice(key.vendor, key.invoiceID, expected)
		}
		inv.Header.ValidationStatus = current.Header.ValidationStatus
	}
	r.invoices[key] = copyInvoice(inv)
	return nil
}

func (r *memoryInvoiceRepository) UpdateStatus(_ context.Context, vendor, invoiceID string, from, to constants.InvoiceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invoiceKey{vendor, invoiceID}
	inv, ok := r.invoices[key]
	if !ok || inv.Header.Status != from {
		return common.NewAppError(common.CodeTransition,
			fmt.Sprintf("invoice %s/%s is missing or no longer status=%q", vendor, invoiceID, from),
			common.ErrInvalidTransition)
	}
	inv.Header.Status = to
	r.invoices[key] = inv
	return nil
}

func (r *memoryInvoiceRepository) UpdateValidationStatus(_ context.Context, vendor, invoiceID string, from, to constants.ValidationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invoiceKey{vendor, invoiceID}
	inv, ok := r.invoices[key]
	if !ok || inv.Header.ValidationStatus != from {
		return common.NewAppError(common.CodeTransition,
			fmt.Sprintf("invoice %s/%s is missing or no longer validation_status=%q", vendor, invoiceID, from),
			common.ErrInvalidTransition)
	}
	inv.Header.ValidationStatus = to
	r.invoices[key] = inv
	return nil
}

func copyInvoice(inv entity.Invoice) entity.Invoice {
	out := inv
	out.Lines = append([]entity.InvoiceLineItem(nil), inv.Lines...)
	return out
}

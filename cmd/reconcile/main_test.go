package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

type recordingWriter struct {
	records []entity.ShipmentRecord
}

func (w *recordingWriter) InsertShipments(_ context.Context, records []entity.ShipmentRecord) error {
	w.records = append(w.records, records...)
	return nil
}

func TestSeedAcceptsInvoiceDateForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"ld_num": "LD1", "chassis_number": "ABCD123456", "pickup_actual_date": "2024-03-01", "delivery_actual_date": 45356},
		{"ld_num": "LD2", "chassis_number": "ABCD123456", "pickup_actual_date": "2024-03-02T10:30:00Z", "delivery_actual_date": ""},
		{"ld_num": "LD3", "chassis_number": "ABCD123456"}
	]`), 0o600))

	w := &recordingWriter{}
	require.NoError(t, seed(context.Background(), w, path))
	require.Len(t, w.records, 3)

	march := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }
	require.NotNil(t, w.records[0].PickupActualDate)
	assert.Equal(t, march(1), *w.records[0].PickupActualDate)
	require.NotNil(t, w.records[0].DeliveryActualDate)
	assert.Equal(t, march(5), *w.records[0].DeliveryActualDate, "spreadsheet serial")
	require.NotNil(t, w.records[1].PickupActualDate)
	assert.Equal(t, march(2), *w.records[1].PickupActualDate)
	assert.Nil(t, w.records[1].DeliveryActualDate)
	assert.Nil(t, w.records[2].PickupActualDate)
}

func TestSeedRejectsUnreadableDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"ld_num": "LD1", "pickup_actual_date": "soon"}]`), 0o600))

	err := seed(context.Background(), &recordingWriter{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shipment 0 pickup_actual_date")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func newSQLite(t *testing.T) *entsql.Driver {
	t.Helper()
	ctx := context.Background()
	drv, err := OpenSQLite(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, Migrate(ctx, drv, zap.NewNop()))
	return drv
}

func newMockPostgres(t *testing.T) (*entsql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return entsql.OpenDB(dialect.Postgres, db), mock
}

func TestFindShipmentsPostgresQuery(t *testing.T) {
	drv, mock := newMockPostgres(t)
	repo := NewShipmentRepository(drv, zap.NewNop())

	rows := sqlmock.NewRows(shipmentColumns).
		AddRow("LD1", "SO1", "SH1", "ABCD-123456", "MSCU1234567", "2024-03-01", "2024-03-05", "Acme", "Globex").
		AddRow("LD2", "SO2", "SH2", "ABCD123456", "", nil, "2024-03-06", "Acme", "Globex")
	mock.ExpectQuery(`SELECT .* FROM "tms_shipments" WHERE .*"chassis_key" = \$1 OR .*"container_key" IN \(\$2, \$3\).*"span_start" <= \$4 AND .*"span_end" >= \$5 ORDER BY .*"id" LIMIT 200`).
		WithArgs("ABCD123456", "MSCU1234567", "TGHU7654321", "2024-03-07", "2024-02-28").
		WillReturnRows(rows)

	got, err := repo.FindShipments(context.Background(), candidates.ShipmentQuery{
		ChassisKey:    "ABCD123456",
		ContainerKeys: []string{"MSCU1234567", "TGHU7654321"},
		From:          day("2024-02-28"),
		To:            day("2024-03-07"),
		Limit:         200,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LD1", got[0].LDNumber)
	require.NotNil(t, got[0].PickupActualDate)
	assert.True(t, got[0].PickupActualDate.Equal(day("2024-03-01")))
	assert.Nil(t, got[1].PickupActualDate)
	require.NotNil(t, got[1].DeliveryActualDate)
	assert.True(t, got[1].DeliveryActualDate.Equal(day("2024-03-06")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindShipmentsChassisOnly(t *testing.T) {
	drv, mock := newMockPostgres(t)
	repo := NewShipmentRepository(drv, zap.NewNop())

	mock.ExpectQuery(`WHERE .*"chassis_key" = \$1\)? AND .*"span_start" <= \$2`).
		WithArgs("ABCD123456", "2024-03-02", "2024-03-01").
		WillReturnRows(sqlmock.NewRows(shipmentColumns))

	got, err := repo.FindShipments(context.Background(), candidates.ShipmentQuery{
		ChassisKey: "ABCD123456",
		From:       day("2024-03-01"),
		To:         day("2024-03-02"),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindShipmentsWithoutKeysSkipsQuery(t *testing.T) {
	drv, mock := newMockPostgres(t)
	repo := NewShipmentRepository(drv, zap.NewNop())

	got, err := repo.FindShipments(context.Background(), candidates.ShipmentQuery{From: day("2024-03-01"), To: day("2024-03-02")})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindShipmentsWrapsDatabaseErrors(t *testing.T) {
	drv, mock := newMockPostgres(t)
	repo := NewShipmentRepository(drv, zap.NewNop())

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrConnDone)

	_, err := repo.FindShipments(context.Background(), candidates.ShipmentQuery{
		ChassisKey: "ABCD123456",
		From:       day("2024-03-01"),
		To:         day("2024-03-02"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDatabase))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestShipmentsSQLiteRoundTrip(t *testing.T) {
	drv := newSQLite(t)
	repo := NewShipmentRepository(drv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.InsertShipments(ctx, []entity.ShipmentRecord{
		{LDNumber: "LD1", ChassisNumber: "abcd-123456", PickupActualDate: dayPtr("2024-03-01"), DeliveryActualDate: dayPtr("2024-03-05")},
		{LDNumber: "LD2", ContainerNumber: "MSCU 1234567", PickupActualDate: dayPtr("2024-03-10")},
		{LDNumber: "LD3", ChassisNumber: "ABCD123456", PickupActualDate: dayPtr("2024-05-01"), DeliveryActualDate: dayPtr("2024-05-04")},
		{LDNumber: "LD4", ChassisNumber: "ABCD123456"},
		{LDNumber: "LD5", ChassisNumber: "WXYZ000001", PickupActualDate: dayPtr("2024-03-02")},
	}))

	tests := []struct {
		name  string
		query candidates.ShipmentQuery
		want  []string
	}{
		{
			name:  "chassis in window",
			query: candidates.ShipmentQuery{ChassisKey: "ABCD123456", From: day("2024-03-04"), To: day("2024-03-08")},
			want:  []string{"LD1"},
		},
		{
			name:  "container single date",
			query: candidates.ShipmentQuery{ContainerKeys: []string{"MSCU1234567"}, From: day("2024-03-09"), To: day("2024-03-11")},
			want:  []string{"LD2"},
		},
		{
			name: "chassis or container",
			query: candidates.ShipmentQuery{
				ChassisKey: "ABCD123456", ContainerKeys: []string{"MSCU1234567"},
				From: day("2024-02-01"), To: day("2024-06-01"),
			},
			want: []string{"LD1", "LD2", "LD3"},
		},
		{
			name:  "limit",
			query: candidates.ShipmentQuery{ChassisKey: "ABCD123456", From: day("2024-01-01"), To: day("2024-12-31"), Limit: 1},
			want:  []string{"LD1"},
		},
		{
			name:  "outside window",
			query: candidates.ShipmentQuery{ChassisKey: "ABCD123456", From: day("2024-04-01"), To: day("2024-04-10")},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindShipments(ctx, tt.query)
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.LDNumber)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryShipmentStoreMatchesSQL(t *testing.T) {
	records := []entity.ShipmentRecord{
		{LDNumber: "LD1", ChassisNumber: "ABCD123456", PickupActualDate: dayPtr("2024-03-01"), DeliveryActualDate: dayPtr("2024-03-05")},
		{LDNumber: "LD2", ChassisNumber: "ABCD123456", PickupActualDate: dayPtr("2024-03-20")},
		{LDNumber: "LD3", ChassisNumber: "ABCD123456"},
		{LDNumber: "LD4", ContainerNumber: "MSCU1234567", DeliveryActualDate: dayPtr("2024-03-03")},
	}
	store := NewMemoryShipmentStore(records...)

	got, err := store.FindShipments(context.Background(), candidates.ShipmentQuery{
		ChassisKey:    "ABCD123456",
		ContainerKeys: []string{"MSCU1234567"},
		From:          day("2024-03-02"),
		To:            day("2024-03-06"),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LD1", got[0].LDNumber)
	assert.Equal(t, "LD4", got[1].LDNumber)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.FindShipments(ctx, candidates.ShipmentQuery{ChassisKey: "ABCD123456"})
	assert.ErrorIs(t, err, context.Canceled)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
	"github.com/joseph-ayodele/tms-reconciler/internal/telemetry"
)

const (
	colID                 = "id"
	colLDNum              = "ld_num"
	colSONum              = "so_num"
	colShipmentNumber     = "shipment_number"
	colChassisNumber      = "chassis_number"
	colContainerNumber    = "container_number"
	colChassisKey         = "chassis_key"
	colContainerKey       = "container_key"
	colPickupActualDate   = "pickup_actual_date"
	colDeliveryActualDate = "delivery_actual_date"
	colSpanStart          = "span_start"
	colSpanEnd            = "span_end"
	colCarrierName        = "carrier_name"
	colCustomerName       = "customer_name"
)

var shipmentColumns = []string{
	colLDNum, colSONum, colShipmentNumber, colChassisNumber, colContainerNumber,
	colPickupActualDate, colDeliveryActualDate, colCarrierName, colCustomerName,
}

// ShipmentRepository is the SQL-backed TMS store. Reads serve the candidate finder;
// inserts exist for seeding and tests, the reconciler never mutates TMS data otherwise.
type ShipmentRepository interface {
	candidates.ShipmentStore
	InsertShipments(ctx context.Context, records []entity.ShipmentRecord) error
}

type shipmentRepository struct {
	drv    *entsql.Driver
	logger *zap.Logger
}

func NewShipmentRepository(drv *entsql.Driver, logger *zap.Logger) ShipmentRepository {
	return &shipmentRepository{
		drv:    drv,
		logger: logger,
	}
}

func (r *shipmentRepository) FindShipments(ctx context.Context, q candidates.ShipmentQuery) ([]entity.ShipmentRecord, error) {
	if q.ChassisKey == "" && len(q.ContainerKeys) == 0 {
		return nil, nil
	}
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFindShipments,
		attribute.String("chassis_key", q.ChassisKey),
		attribute.StringSlice("container_keys", q.ContainerKeys),
	)
	defer span.End()

	query, args := r.findQuery(q)
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("failed to query shipments", zap.String("chassis_key", q.ChassisKey), zap.Error(err))
		return nil, fmt.Errorf("%w: find shipments: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.ShipmentRecord
	for rows.Next() {
		var (
			rec              entity.ShipmentRecord
			pickup, delivery sql.NullString
		)
		if err := rows.Scan(
			&rec.LDNumber, &rec.SONumber, &rec.ShipmentNumber, &rec.ChassisNumber, &rec.ContainerNumber,
			&pickup, &delivery, &rec.CarrierName, &rec.CustomerName,
		); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("%w: scan shipment: %w", common.ErrDatabase, err)
		}
		rec.PickupActualDate = scanDate(pickup)
		rec.DeliveryActualDate = scanDate(delivery)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: iterate shipments: %w", common.ErrDatabase, err)
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

// findQuery selects by chassis key or any container key, restricted to records whose
// precomputed [span_start, span_end] intersects the window. Records without dates have
// NULL spans and never match.
func (r *shipmentRepository) findQuery(q candidates.ShipmentQuery) (string, []any) {
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(tableShipments)

	cols := make([]string, len(shipmentColumns))
	for i, c := range shipmentColumns {
		cols[i] = t.C(c)
	}

	var ids []*entsql.Predicate
	if q.ChassisKey != "" {
		ids = append(ids, entsql.EQ(t.C(colChassisKey), q.ChassisKey))
	}
	if len(q.ContainerKeys) > 0 {
		keys := make([]any, len(q.ContainerKeys))
		for i, k := range q.ContainerKeys {
			keys[i] = k
		}
		ids = append(ids, entsql.In(t.C(colContainerKey), keys...))
	}

	sel := b.Select(cols...).
		From(t).
		Where(entsql.And(
			entsql.Or(ids...),
			entsql.LTE(t.C(colSpanStart), q.To.Format(constants.DateLayout)),
			entsql.GTE(t.C(colSpanEnd), q.From.Format(constants.DateLayout)),
		)).
		OrderBy(t.C(colID))
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	return sel.Query()
}

func (r *shipmentRepository) InsertShipments(ctx context.Context, records []entity.ShipmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	ins := entsql.Dialect(r.drv.Dialect()).
		Insert(tableShipments).
		Columns(
			colLDNum, colSONum, colShipmentNumber, colChassisNumber, colContainerNumber,
			colChassisKey, colContainerKey, colPickupActualDate, colDeliveryActualDate,
			colSpanStart, colSpanEnd, colCarrierName, colCustomerName,
		)
	for _, rec := range records {
		keys := normalize.Record(rec)
		var start, end any
		if s, e, ok := keys.Span(); ok {
			start, end = s.Format(constants.DateLayout), e.Format(constants.DateLayout)
		}
		ins.Values(
			rec.LDNumber, rec.SONumber, rec.ShipmentNumber, rec.ChassisNumber, rec.ContainerNumber,
			keys.ChassisKey, keys.ContainerKey, dateArg(keys.Pickup), dateArg(keys.Delivery),
			start, end, rec.CarrierName, rec.CustomerName,
		)
	}
	query, args := ins.Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to insert shipments", zap.Int("count", len(records)), zap.Error(err))
		return fmt.Errorf("%w: insert shipments: %w", common.ErrDatabase, err)
	}
	r.logger.Info("inserted shipments", zap.Int("count", len(records)))
	return nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(constants.DateLayout)
}

func scanDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	return normalize.Date(s.String).Ptr()
}

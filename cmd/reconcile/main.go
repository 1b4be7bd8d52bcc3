package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/tms-reconciler/internal/cache"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
	repo "github.com/joseph-ayodele/tms-reconciler/internal/repository"
	"github.com/joseph-ayodele/tms-reconciler/internal/request"
	"github.com/joseph-ayodele/tms-reconciler/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// seedShipment is one TMS record in a --tms seed file.
type seedShipment struct {
	LDNum              string `json:"ld_num"`
	SONum              string `json:"so_num"`
	ShipmentNumber     string `json:"shipment_number"`
	ChassisNumber      string `json:"chassis_number"`
	ContainerNumber    string `json:"container_number"`
	PickupActualDate   any    `json:"pickup_actual_date"`
	DeliveryActualDate any    `json:"delivery_actual_date"`
	CarrierName        string `json:"carrier_name"`
	CustomerName       string `json:"customer_name"`
}

func main() {
	var (
		reqPath    = flag.String("request", "", "validate_dcli_invoice request JSON file (required)")
		tmsPath    = flag.String("tms", "", "TMS shipments JSON file seeded into an in-memory SQLite store")
		out        = flag.String("out", "", "write the reconciliation workbook to this XLSX path")
		addr       = flag.String("addr", "", "call a running reconcilerd gRPC server instead of reconciling locally")
		duplicates = flag.Bool("duplicates", false, "report duplicate chassis moves instead of validating")
	)
	flag.Parse()

	if *reqPath == "" {
		printError("Error: --request is required\n")
		os.Exit(1)
	}
	body, err := os.ReadFile(*reqPath)
	if err != nil {
		printError("Error: reading request: %v\n", err)
		os.Exit(1)
	}

	_ = godotenv.Load()
	logger := common.NewLogger(common.LogConfig{Level: "warn", Format: "console", Output: "stderr"})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result any
	if *addr != "" {
		result, err = remote(ctx, *addr, body, *out, *duplicates)
	} else {
		result, err = local(ctx, logger, body, *tmsPath, *out, *duplicates)
	}
	if err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		printError("Error: writing result: %v\n", err)
		os.Exit(1)
	}
}

func local(ctx context.Context, logger *zap.Logger, body []byte, tmsPath, out string, duplicates bool) (any, error) {
	req, err := request.Parse(body)
	if err != nil {
		return nil, err
	}

	policy := reconcile.DefaultPolicy()
	dbCfg := common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	var (
		scanLimit int
		redisCfg  common.RedisConfig
	)
	if loaded, err := common.LoadConfig(); err == nil {
		policy = reconcile.PolicyFromConfig(loaded.Reconcile)
		scanLimit = loaded.Reconcile.ScanLimit
		redisCfg = loaded.Redis
		if tmsPath == "" {
			dbCfg = loaded.Database
		}
	} else {
		logger.Debug("no configuration loaded, using default policy", zap.Error(err))
	}

	db, err := server.ConnectDB(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	defer server.CloseDB(db, logger)

	var store candidates.ShipmentStore = repo.NewShipmentRepository(db.Driver, logger)
	if redisCfg.Enabled {
		shipmentCache, err := cache.New(ctx, cache.Config{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		}, store, cache.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		defer func() { _ = shipmentCache.Close() }()
		store = shipmentCache
	}

	if tmsPath != "" {
		w, ok := store.(shipmentWriter)
		if !ok {
			return nil, fmt.Errorf("shipment store does not accept inserts")
		}
		if err := seed(ctx, w, tmsPath); err != nil {
			return nil, err
		}
	}

	var finderOpts []candidates.Option
	if scanLimit > 0 {
		finderOpts = append(finderOpts, candidates.WithScanLimit(scanLimit))
	}
	engine := reconcile.NewEngine(candidates.NewFinder(store, logger, finderOpts...), logger)
	svc := reconcile.NewService(engine, logger, reconcile.WithPolicy(policy))

	if duplicates {
		return svc.DetectDuplicates(ctx, req)
	}
	if out == "" {
		return svc.ValidateInvoice(ctx, req)
	}
	exp, err := svc.ExportValidation(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, exp.Data, 0o644); err != nil {
		return nil, err
	}
	return exp.Result, nil
}

func remote(ctx context.Context, addr string, body []byte, out string, duplicates bool) (any, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	client := server.NewClient(conn)

	if duplicates {
		return client.DetectDuplicates(ctx, body)
	}
	if out == "" {
		return client.ValidateInvoice(ctx, body)
	}
	exp, err := client.ExportValidation(ctx, body)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, exp.Xlsx, 0o644); err != nil {
		return nil, err
	}
	return exp.Result, nil
}

type shipmentWriter interface {
	InsertShipments(ctx context.Context, records []entity.ShipmentRecord) error
}

func seed(ctx context.Context, shipments shipmentWriter, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rows []seedShipment
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	records := make([]entity.ShipmentRecord, 0, len(rows))
	for i, row := range rows {
		pickup, err := optionalDate(row.PickupActualDate)
		if err != nil {
			return fmt.Errorf("shipment %d pickup_actual_date: %w", i, err)
		}
		delivery, err := optionalDate(row.DeliveryActualDate)
		if err != nil {
			return fmt.Errorf("shipment %d delivery_actual_date: %w", i, err)
		}
		records = append(records, entity.ShipmentRecord{
			LDNumber:           row.LDNum,
			SONumber:           row.SONum,
			ShipmentNumber:     row.ShipmentNumber,
			ChassisNumber:      row.ChassisNumber,
			ContainerNumber:    row.ContainerNumber,
			PickupActualDate:   pickup,
			DeliveryActualDate: delivery,
			CarrierName:        row.CarrierName,
			CustomerName:       row.CustomerName,
		})
	}
	return shipments.InsertShipments(ctx, records)
}

// optionalDate accepts the same date forms as invoice lines. Blank values mean unknown.
func optionalDate(raw any) (*time.Time, error) {
	d := normalize.Date(raw)
	if d.Valid {
		return d.Ptr(), nil
	}
	if raw == nil || raw == "" {
		return nil, nil
	}
	return nil, fmt.Errorf("unrecognised date %v", raw)
}

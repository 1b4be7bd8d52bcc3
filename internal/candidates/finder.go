package candidates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
)

// ErrNoDateWindow is returned for a line with identifiers but no resolvable date.
var ErrNoDateWindow = errors.New("line has no valid date to build a search window")

// DefaultScanLimit bounds how many rows a store returns for a single lookup.
const DefaultScanLimit = 200

// DateWindowPolicy controls how wide the search window is and how many candidates survive.
type DateWindowPolicy struct {
	ToleranceDays int `validate:"gte=0,lte=365"`
	MaxCandidates int `validate:"gte=1,lte=1000"`
}

// DefaultDateWindowPolicy is a one day tolerance and at most 20 candidates.
func DefaultDateWindowPolicy() DateWindowPolicy {
	return DateWindowPolicy{ToleranceDays: 1, MaxCandidates: 20}
}

// ShipmentQuery selects records by identifier and overlapping date range.
// A record matches when its chassis key equals ChassisKey or its container key is one of
// ContainerKeys, and its [pickup, delivery] span intersects [From, To].
type ShipmentQuery struct {
	ChassisKey    string
	ContainerKeys []string
	From          time.Time
	To            time.Time
	Limit         int
}

// Key is a stable string form of the query, used for caching.
func (q ShipmentQuery) Key() string {
	return fmt.Sprintf("c=%s|k=%s|f=%s|t=%s|n=%d",
		q.ChassisKey,
		strings.Join(q.ContainerKeys, ","),
		q.From.Format("2006-01-02"),
		q.To.Format("2006-01-02"),
		q.Limit,
	)
}

// Matches reports whether rec satisfies q.
func (q ShipmentQuery) Matches(rec entity.ShipmentRecord) bool {
	keys := normalize.Record(rec)
	idMatch := q.ChassisKey != "" && keys.ChassisKey == q.ChassisKey
	if !idMatch && keys.ContainerKey != "" {
		for _, k := range q.ContainerKeys {
			if k == keys.ContainerKey {
				idMatch = true
				break
			}
		}
	}
	if !idMatch {
		return false
	}
	start, end, ok := keys.Span()
	if !ok {
		return false
	}
	return !start.After(q.To) && !end.Before(q.From)
}

// ShipmentStore is the TMS record source queried by the finder.
type ShipmentStore interface {
	FindShipments(ctx context.Context, q ShipmentQuery) ([]entity.ShipmentRecord, error)
}

// Finder retrieves the bounded, proximity-ordered candidate set for a line.
type Finder struct {
	store     ShipmentStore
	logger    *zap.Logger
	scanLimit int
}

type Option func(*Finder)

// WithScanLimit caps the number of rows requested from the store per lookup.
func WithScanLimit(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.scanLimit = n
		}
	}
}

func NewFinder(store ShipmentStore, logger *zap.Logger, opts ...Option) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finder{
		store:     store,
		logger:    logger,
		scanLimit: DefaultScanLimit,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Find returns at most window.MaxCandidates records ordered by date proximity to the line.
// A line without identifiers yields no candidates and no store call.
func (f *Finder) Find(ctx context.Context, line normalize.LineItem, window DateWindowPolicy) ([]entity.ShipmentRecord, error) {
	if !line.HasIdentifiers() {
		return nil, nil
	}
	from, to, ok := line.Window(window.ToleranceDays)
	if !ok {
		return nil, ErrNoDateWindow
	}

	q := ShipmentQuery{
		ChassisKey:    line.ChassisKey,
		ContainerKeys: line.ContainerKeys(),
		From:          from,
		To:            to,
		Limit:         f.scanLimit,
	}
	records, err := f.store.FindShipments(ctx, q)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		rec       entity.ShipmentRecord
		proximity int
	}
	kept := make([]ranked, 0, len(records))
	for _, rec := range records {
		if !q.Matches(rec) {
			continue
		}
		kept = append(kept, ranked{rec: rec, proximity: Proximity(line, rec)})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].proximity < kept[j].proximity
	})

	limit := window.MaxCandidates
	if limit <= 0 || limit > len(kept) {
		limit = len(kept)
	}
	out := make([]entity.ShipmentRecord, limit)
	for i := range out {
		out[i] = kept[i].rec
	}

	f.logger.Debug("candidates found",
		zap.String("chassis_key", q.ChassisKey),
		zap.Strings("container_keys", q.ContainerKeys),
		zap.Int("scanned", len(records)),
		zap.Int("returned", len(out)),
	)
	return out, nil
}

// Proximity is the sum of day gaps between the line's out/in dates and the record's
// pickup/delivery dates. Lower is closer.
func Proximity(line normalize.LineItem, rec entity.ShipmentRecord) int {
	out, in, ok := line.EffectiveDates()
	if !ok {
		return 0
	}
	pickup, delivery, ok := normalize.Record(rec).Dates()
	if !ok {
		return 0
	}
	return normalize.AbsDays(out, pickup) + normalize.AbsDays(in, delivery)
}

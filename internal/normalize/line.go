package normalize

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

// LineItem is an invoice line with comparable identifier keys and resolved dates.
type LineItem struct {
	ChassisKey      string
	ContainerOutKey string
	ContainerInKey  string
	DateOut         DateResult
	DateIn          DateResult
	Source          entity.InvoiceLineItem
}

// Line normalizes one invoice line item.
func Line(item entity.InvoiceLineItem) LineItem {
	return LineItem{
		ChassisKey:      Identifier(item.ChassisIdentifier),
		ContainerOutKey: Identifier(item.ContainerOutIdentifier),
		ContainerInKey:  Identifier(item.ContainerInIdentifier),
		DateOut:         Date(item.DateOut),
		DateIn:          Date(item.DateIn),
		Source:          item,
	}
}

// HasIdentifiers reports whether the line carries a chassis or a container key.
func (l LineItem) HasIdentifiers() bool {
	return l.ChassisKey != "" || l.ContainerOutKey != "" || l.ContainerInKey != ""
}

// ContainerKeys returns the distinct non-empty container keys, out before in.
func (l LineItem) ContainerKeys() []string {
	keys := make([]string, 0, 2)
	if l.ContainerOutKey != "" {
		keys = append(keys, l.ContainerOutKey)
	}
	if l.ContainerInKey != "" && l.ContainerInKey != l.ContainerOutKey {
		keys = append(keys, l.ContainerInKey)
	}
	return keys
}

// HasContainer reports whether key equals either container key of the line.
func (l LineItem) HasContainer(key string) bool {
	if key == "" {
		return false
	}
	return key == l.ContainerOutKey || key == l.ContainerInKey
}

// Ambiguous reports whether either date was left unresolved because of a two-digit year.
func (l LineItem) Ambiguous() bool {
	return l.DateOut.Ambiguous || l.DateIn.Ambiguous
}

// EffectiveDates returns the out and in dates, substituting one for the other when only
// one resolved. ok is false when neither resolved.
func (l LineItem) EffectiveDates() (out, in time.Time, ok bool) {
	return pair(l.DateOut.Ptr(), l.DateIn.Ptr())
}

// Window returns [out - tolerance, in + tolerance]. ok is false when the line has no valid date.
func (l LineItem) Window(toleranceDays int) (from, to time.Time, ok bool) {
	out, in, ok := l.EffectiveDates()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if in.Before(out) {
		out, in = in, out
	}
	return out.AddDate(0, 0, -toleranceDays), in.AddDate(0, 0, toleranceDays), true
}

// DisplayChassis is the trimmed chassis as the vendor wrote it.
func (l LineItem) DisplayChassis() string {
	return strings.TrimSpace(l.Source.ChassisIdentifier)
}

// DisplayContainer is the trimmed outbound container, falling back to the inbound one.
func (l LineItem) DisplayContainer() string {
	if c := strings.TrimSpace(l.Source.ContainerOutIdentifier); c != "" {
		return c
	}
	return strings.TrimSpace(l.Source.ContainerInIdentifier)
}

// RecordKeys is the comparable form of a TMS shipment record.
type RecordKeys struct {
	ChassisKey   string
	ContainerKey string
	Pickup       *time.Time
	Delivery     *time.Time
}

// Record normalizes the identifiers and dates of a shipment record.
func Record(rec entity.ShipmentRecord) RecordKeys {
	return RecordKeys{
		ChassisKey:   Identifier(rec.ChassisNumber),
		ContainerKey: Identifier(rec.ContainerNumber),
		Pickup:       Date(rec.PickupActualDate).Ptr(),
		Delivery:     Date(rec.DeliveryActualDate).Ptr(),
	}
}

// Dates returns pickup and delivery, substituting one for the other when only one is known.
func (r RecordKeys) Dates() (pickup, delivery time.Time, ok bool) {
	return pair(r.Pickup, r.Delivery)
}

// Span is Dates ordered so that start <= end. ok is false when the record has no dates.
func (r RecordKeys) Span() (start, end time.Time, ok bool) {
	start, end, ok = r.Dates()
	if ok && end.Before(start) {
		start, end = end, start
	}
	return start, end, ok
}

func pair(first, second *time.Time) (time.Time, time.Time, bool) {
	switch {
	case first != nil && second != nil:
		return *first, *second, true
	case first != nil:
		return *first, *first, true
	case second != nil:
		return *second, *second, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

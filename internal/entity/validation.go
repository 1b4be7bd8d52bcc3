package entity

import (
	"encoding/json"

	"github.com/joseph-ayodele/tms-reconciler/constants"
)

// MatchCandidate is a scored association between one line item and one shipment record.
type MatchCandidate struct {
	Record       ShipmentRecord
	Confidence   int
	MatchReasons []string
	MatchType    constants.MatchType
}

// TMSMatch is the wire shape of the winning candidate on a validation row.
type TMSMatch struct {
	LDNum              string   `json:"ld_num"`
	SONum              string   `json:"so_num"`
	ShipmentNumber     string   `json:"shipment_number"`
	ChassisNumber      string   `json:"chassis_number"`
	ContainerNumber    string   `json:"container_number"`
	PickupActualDate   string   `json:"pickup_actual_date"`
	DeliveryActualDate string   `json:"delivery_actual_date"`
	CarrierName        string   `json:"carrier_name"`
	CustomerName       string   `json:"customer_name"`
	Confidence         int      `json:"confidence"`
	MatchReasons       []string `json:"match_reasons"`
}

// NewTMSMatch renders a candidate for the wire.
func NewTMSMatch(c MatchCandidate) *TMSMatch {
	reasons := c.MatchReasons
	if reasons == nil {
		reasons = []string{}
	}
	return &TMSMatch{
		LDNum:              c.Record.LDNumber,
		SONum:              c.Record.SONumber,
		ShipmentNumber:     c.Record.ShipmentNumber,
		ChassisNumber:      c.Record.ChassisNumber,
		ContainerNumber:    c.Record.ContainerNumber,
		PickupActualDate:   formatDate(c.Record.PickupActualDate),
		DeliveryActualDate: formatDate(c.Record.DeliveryActualDate),
		CarrierName:        c.Record.CarrierName,
		CustomerName:       c.Record.CustomerName,
		Confidence:         c.Confidence,
		MatchReasons:       reasons,
	}
}

// ValidationRow is one reconciled line item, in input order.
type ValidationRow struct {
	LineInvoiceNumber string              `json:"line_invoice_number"`
	Chassis           string              `json:"chassis"`
	Container         string              `json:"container"`
	MatchConfidence   int                 `json:"match_confidence"`
	MatchType         constants.MatchType `json:"match_type"`
	TMSMatch          *TMSMatch           `json:"tms_match"`
	Notes             []string            `json:"notes,omitempty"`
}

// ValidationSummary holds bucket counts. Exact+Fuzzy+Mismatches == TotalRows.
type ValidationSummary struct {
	ExactMatches int `json:"exact_matches"`
	FuzzyMatches int `json:"fuzzy_matches"`
	Mismatches   int `json:"mismatches"`
	TotalRows    int `json:"total_rows"`
}

// Add counts one row into its bucket.
func (s *ValidationSummary) Add(t constants.MatchType) {
	switch t {
	case constants.MatchExact:
		s.ExactMatches++
	case constants.MatchFuzzy:
		s.FuzzyMatches++
	default:
		s.Mismatches++
	}
	s.TotalRows++
}

// ValidationResult is the output of one reconciliation run.
type ValidationResult struct {
	RunID    string            `json:"run_id,omitempty"`
	Summary  ValidationSummary `json:"summary"`
	Rows     []ValidationRow   `json:"rows"`
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings,omitempty"`
}

// ReadyToSave mirrors the web client's gate: no header errors and no mismatched rows.
func (r *ValidationResult) ReadyToSave() bool {
	return len(r.Errors) == 0 && r.Summary.Mismatches == 0
}

// MarshalJSON keeps rows and errors as arrays when empty.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	type alias ValidationResult
	a := alias(r)
	if a.Rows == nil {
		a.Rows = []ValidationRow{}
	}
	if a.Errors == nil {
		a.Errors = []string{}
	}
	return json.Marshal(a)
}

package constants

// Match reasons, appended in this order when the corresponding check passes.
const (
	ReasonChassisMatch   = "Chassis match"
	ReasonContainerMatch = "Container match"
	ReasonPickupDate     = "Pickup date within tolerance"
	ReasonDeliveryDate   = "Delivery date within tolerance"
)

// Row notes explaining why a line has no TMS match.
const (
	NoteNoIdentifiers  = "No load found: line has no chassis or container identifier"
	NoteNoDates        = "No load found: line has no valid out/in date"
	NoteNoCandidates   = "No load found for chassis/container in date window"
	NoteLookupTimedOut = "Shipment lookup timed out"
	NoteLookupFailed   = "Shipment lookup failed"
)

// Duplicate-move finding kinds.
const (
	DupMoveExact   = "dup_move_exact"
	DupMovePartial = "dup_move_partial"
)

// DateLayout is the calendar date format used on the wire and in exports.
const DateLayout = "2006-01-02"

// XLSXContentType is the MIME type of exported reconciliation workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

package constants

import (
	"strings"
)

// Vendor is a canonical chassis-pool / equipment vendor code.
type Vendor string

const (
	VendorDCLI      Vendor = "DCLI"
	VendorTRAC      Vendor = "TRAC"
	VendorFlexivan  Vendor = "FLEXIVAN"
	VendorMilestone Vendor = "MILESTONE"
	VendorCCM       Vendor = "CCM"
	VendorSCSPA     Vendor = "SCSPA"
)

// DefaultVendor is assumed when a validation request names no vendor.
const DefaultVendor = VendorDCLI

var allVendors = []Vendor{
	VendorDCLI,
	VendorTRAC,
	VendorFlexivan,
	VendorMilestone,
	VendorCCM,
	VendorSCSPA,
}

// CanonicalVendor maps a free-form vendor label to its canonical code.
// Unknown labels are returned trimmed and uppercased with ok=false.
func CanonicalVendor(input string) (Vendor, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return DefaultVendor, false
	}

	synonyms := map[string]Vendor{
		"direct chassislink":              VendorDCLI,
		"direct chassis link":             VendorDCLI,
		"dcli":                            VendorDCLI,
		"trac intermodal":                 VendorTRAC,
		"trac":                            VendorTRAC,
		"flexi-van":                       VendorFlexivan,
		"flexi van":                       VendorFlexivan,
		"milestone equipment":             VendorMilestone,
		"consolidated chassis":            VendorCCM,
		"consolidated chassis management": VendorCCM,
		"south carolina ports":            VendorSCSPA,
	}
	if v, ok := synonyms[normalized]; ok {
		return v, true
	}

	for _, v := range allVendors {
		if normalized == strings.ToLower(string(v)) {
			return v, true
		}
	}

	return Vendor(strings.ToUpper(strings.TrimSpace(input))), false
}

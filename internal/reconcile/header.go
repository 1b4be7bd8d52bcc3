package reconcile

import (
	"fmt"

	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
)

// CheckHeader reports header completeness problems as reviewer-facing strings. They are
// never fatal. Warnings carry dates left unresolved because of a two-digit year.
func CheckHeader(h entity.InvoiceHeader) (errs []string, warnings []string) {
	v := common.NewValidator()
	v.Field("invoiceId", h.InvoiceID, common.Required, common.MaxLength(128))
	warnings = append(warnings, checkDate(v, "billingDate", h.BillingDate)...)
	warnings = append(warnings, checkDate(v, "dueDate", h.DueDate)...)
	v.Field("amountDue", h.AmountDue, common.PositiveAmount)
	v.Field("currencyCode", h.CurrencyCode, common.CurrencyCode)
	return v.Messages(), warnings
}

func checkDate(v *common.Validator, field, raw string) []string {
	if common.Required(field, raw) != nil {
		v.Field(field, raw, common.Required)
		return nil
	}
	d := normalize.Date(raw)
	v.Check(d.Valid, field, raw, fmt.Sprintf("%q does not resolve to a valid date", raw))
	if d.Ambiguous {
		return []string{fmt.Sprintf("%s %q has a two-digit year and was not resolved", field, raw)}
	}
	return nil
}

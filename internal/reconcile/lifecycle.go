package reconcile

import (
	"fmt"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
)

var invoiceTransitions = map[constants.InvoiceStatus][]constants.InvoiceStatus{
	constants.InvoiceStatusDraft:             {constants.InvoiceStatusPendingValidation},
	constants.InvoiceStatusPendingValidation: {constants.InvoiceStatusPendingValidation, constants.InvoiceStatusSubmitted},
}

var validationTransitions = map[constants.ValidationStatus][]constants.ValidationStatus{
	constants.ValidationStatusPending:    {constants.ValidationStatusInProgress},
	constants.ValidationStatusInProgress: {constants.ValidationStatusInProgress, constants.ValidationStatusCompleted},
	constants.ValidationStatusCompleted:  {constants.ValidationStatusInProgress},
}

// Transition checks an invoice status move. Submitted is terminal.
func Transition(from, to constants.InvoiceStatus) error {
	for _, allowed := range invoiceTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return common.NewAppError(common.CodeTransition,
		fmt.Sprintf("invoice cannot move from %q to %q", from, to), common.ErrInvalidTransition)
}

// TransitionValidation checks a validation status move. Validation may be rerun any number
// of times until the invoice is submitted.
func TransitionValidation(status constants.InvoiceStatus, from, to constants.ValidationStatus) error {
	if status == constants.InvoiceStatusSubmitted {
		return common.NewAppError(common.CodeTransition,
			"validation status of a submitted invoice is frozen", common.ErrInvalidTransition)
	}
	for _, allowed := range validationTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return common.NewAppError(common.CodeTransition,
		fmt.Sprintf("validation cannot move from %q to %q", from, to), common.ErrInvalidTransition)
}

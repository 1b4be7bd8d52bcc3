package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/tms-reconciler/constants"
)

const schemaURL = "validate_invoice_request.json"

// BuildRequestJSONSchema returns the structural contract of a validation request as a
// generic map. Only lineItems is required; business checks happen later and are
// reported in the result, not here.
func BuildRequestJSONSchema() map[string]any {
	lineItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lineInvoiceNumber":      nullable("string"),
			"chassisIdentifier":      nullable("string"),
			"containerOutIdentifier": nullable("string"),
			"containerInIdentifier":  nullable("string"),
			"dateOut":                dateProp(),
			"dateIn":                 dateProp(),
			"invoiceTotal":           moneyProp(),
			"disputeStatus": map[string]any{
				"enum": []any{nil, string(constants.DisputeNone), string(constants.DisputeDisputed), string(constants.DisputeResolved)},
			},
			"rowData": nullable("object"),
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoiceId":    nullable("string"),
			"accountCode":  nullable("string"),
			"vendor":       nullable("string"),
			"currencyCode": nullable("string"),
			"billingDate":  dateProp(),
			"dueDate":      dateProp(),
			"amountDue":    moneyProp(),
			"lineItems": map[string]any{
				"type":  "array",
				"items": lineItem,
			},
		},
		"required": []string{"lineItems"},
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}

// dates arrive as ISO strings or spreadsheet serial numbers
func dateProp() map[string]any {
	return map[string]any{"type": []string{"string", "number", "null"}}
}

func moneyProp() map[string]any {
	return map[string]any{
		"oneOf": []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "null"},
			map[string]any{"type": "string", "pattern": `^\s*-?\d+(\.\d+)?\s*$`},
		},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func requestSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(BuildRequestJSONSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// schemaViolations flattens a validation error tree into "location: message" lines.
func schemaViolations(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	seen := map[string]bool{}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msg := loc + ": " + e.Message
			if !seen[msg] {
				seen[msg] = true
				out = append(out, msg)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return strings.Join(out, "; ")
}

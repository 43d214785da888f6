// internal/process/store/schema.go
package store

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema is the structural contract a persisted snapshot must meet
// before it is trusted. Anything failing it is treated as corruption and
// reset to defaults.
const snapshotSchema = `{
	"type": "object",
	"required": ["processId", "currentStep"],
	"properties": {
		"schemaVersion":      {"type": "integer"},
		"processId":          {"type": "string", "minLength": 1},
		"currentStep": {
			"type": "string",
			"enum": [
				"initial-data", "contract-source", "documents",
				"review", "print", "signed-photo", "confirmation"
			]
		},
		"contractSourceType": {"type": "string", "enum": ["new", "existing", ""]},
		"buyerType":          {"type": "string", "enum": ["pf", "pj", ""]},
		"personalDocKind":    {"type": "string", "enum": ["rg", "cnh", ""]},
		"buyerInfo":          {"type": "object"},
		"companyInfo":        {"type": ["object", "null"]},
		"internalTeamMemberInfo": {"type": "object"},
		"contractPhoto":      {"type": ["object", "null"]},
		"photoVerification":  {"type": ["object", "null"]},
		"extractedContractData": {"type": ["object", "null"]},
		"documentSlots":      {"type": ["object", "null"]},
		"signedContractPhoto": {"type": ["object", "null"]}
	}
}`

var compiledSnapshotSchema = gojsonschema.NewStringLoader(snapshotSchema)

// validateSnapshot checks a raw snapshot against the state schema.
func validateSnapshot(raw string) error {
	result, err := gojsonschema.Validate(compiledSnapshotSchema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	if !result.Valid() {
		if errs := result.Errors(); len(errs) > 0 {
			return fmt.Errorf("snapshot schema violation: %s", errs[0].String())
		}
		return fmt.Errorf("snapshot schema violation")
	}
	return nil
}

// pkg/registry/schema.go
package registry

import "contract-wizard/internal/models"

// TemplateRegistry is the catalog of pre-defined contract templates the
// wizard offers when the contract source is "existing".
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template is one pre-defined contract: display metadata plus the contract
// data copied into the process state on selection.
type Template struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"displayName"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Version     string              `json:"version"`
	Data        models.ContractData `json:"data"`
	Tags        []string            `json:"tags"`
}

// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Find returns the template with the given id.
func (r *TemplateRegistry) Find(id string) (*Template, error) {
	for i := range r.Templates {
		if r.Templates[i].ID == id {
			return &r.Templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %s not found in registry", id)
}

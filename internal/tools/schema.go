package tools

// ParamType is the JSON type of a tool parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param describes one named argument of a tool
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Enum        []any     `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// Schema is the contract a tool advertises to model providers
type Schema struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Params         []Param `json:"parameters"`
	Category       string  `json:"category,omitempty"`
	HasSideEffects bool    `json:"has_side_effects"`
}

// Param returns the parameter called name
func (s Schema) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// JSONSchema renders the parameters as a JSON-Schema object
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))

	for _, p := range s.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == TypeArray {
			prop["items"] = map[string]any{"type": string(TypeString)}
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

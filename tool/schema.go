package tool

import (
	"fmt"
)

// Schema declares the parameter contract for a tool. Step parameters are
// validated against it at plan-generation time, so execution never sees a
// payload the descriptor did not declare.
type Schema struct {
	Required []string             `json:"required,omitempty"`
	Params   map[string]ParamSpec `json:"params,omitempty"`
}

// ParamSpec defines validation rules for a single parameter
type ParamSpec struct {
	Type          string   `json:"type"` // "string", "integer", "boolean"
	MinLength     int      `json:"min_length,omitempty"`
	MaxLength     int      `json:"max_length,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// Validate checks a parameter payload against the schema.
// Unknown parameters are rejected so that typos surface at planning time.
func (s Schema) Validate(toolName string, params map[string]interface{}) error {
	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			return &ValidationError{Tool: toolName, Param: name, Reason: "required parameter missing"}
		}
	}

	for name, val := range params {
		spec, ok := s.Params[name]
		if !ok {
			return &ValidationError{Tool: toolName, Param: name, Reason: "parameter not declared in schema"}
		}
		if err := spec.check(toolName, name, val); err != nil {
			return err
		}
	}

	return nil
}

func (p ParamSpec) check(toolName, name string, val interface{}) error {
	switch p.Type {
	case "string":
		str, ok := val.(string)
		if !ok {
			return &ValidationError{Tool: toolName, Param: name, Reason: fmt.Sprintf("expected string, got %T", val)}
		}
		if p.MinLength > 0 && len(str) < p.MinLength {
			return &ValidationError{Tool: toolName, Param: name,
				Reason: fmt.Sprintf("shorter than minimum length %d", p.MinLength)}
		}
		if p.MaxLength > 0 && len(str) > p.MaxLength {
			return &ValidationError{Tool: toolName, Param: name,
				Reason: fmt.Sprintf("longer than maximum length %d", p.MaxLength)}
		}
		if len(p.AllowedValues) > 0 {
			allowed := false
			for _, v := range p.AllowedValues {
				if str == v {
					allowed = true
					break
				}
			}
			if !allowed {
				return &ValidationError{Tool: toolName, Param: name,
					Reason: fmt.Sprintf("%q is not an allowed value", str)}
			}
		}
	case "integer":
		// JSON numbers decode as float64
		switch v := val.(type) {
		case int:
		case int64:
		case float64:
			if v != float64(int64(v)) {
				return &ValidationError{Tool: toolName, Param: name, Reason: "expected integer, got fraction"}
			}
		default:
			return &ValidationError{Tool: toolName, Param: name, Reason: fmt.Sprintf("expected integer, got %T", val)}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &ValidationError{Tool: toolName, Param: name, Reason: fmt.Sprintf("expected boolean, got %T", val)}
		}
	default:
		return &ValidationError{Tool: toolName, Param: name,
			Reason: fmt.Sprintf("schema declares unsupported type %q", p.Type)}
	}
	return nil
}

// GetString pulls a string parameter from a payload
func GetString(params map[string]interface{}, key string) (string, bool) {
	val, exists := params[key]
	if !exists {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt pulls an integer parameter from a payload, accepting JSON float64
func GetInt(params map[string]interface{}, key string) (int, bool) {
	val, exists := params[key]
	if !exists {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

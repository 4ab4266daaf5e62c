package llm

import (
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// lenient returns a copy of s for validating replies. Objects accept
// unknown keys, and array or object properties may be missing or null.
// Scalar properties stay required.
func lenient(s *jsonschema.Schema) *jsonschema.Schema {
	c := s.CloneSchemas()
	relax(c)
	return c
}

func relax(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if s.Properties != nil {
		s.AdditionalProperties = nil
		s.Required = slices.Clone(s.Required)
	}
	for name, p := range s.Properties {
		if isCollection(p) {
			s.Required = slices.DeleteFunc(s.Required, func(r string) bool { return r == name })
			allowNull(p)
		}
		relax(p)
	}
	relax(s.Items)
}

// strict returns a copy of s in the shape OpenAI structured outputs demand:
// every property required and no unknown keys. It reports false when an
// optional property cannot be made nullable.
func strict(s *jsonschema.Schema) (*jsonschema.Schema, bool) {
	if s == nil {
		return nil, false
	}
	c := s.CloneSchemas()
	return c, tighten(c)
}

func tighten(s *jsonschema.Schema) bool {
	if s == nil {
		return true
	}
	if s.Properties != nil {
		names := make([]string, 0, len(s.Properties))
		for name, p := range s.Properties {
			if !slices.Contains(s.Required, name) && !nullable(p) {
				return false
			}
			names = append(names, name)
			if !tighten(p) {
				return false
			}
		}
		slices.Sort(names)
		s.Required = names
	}
	return tighten(s.Items)
}

func isCollection(s *jsonschema.Schema) bool {
	return hasType(s, "array") || hasType(s, "object")
}

func nullable(s *jsonschema.Schema) bool {
	return hasType(s, "null")
}

func hasType(s *jsonschema.Schema, typ string) bool {
	return s.Type == typ || slices.Contains(s.Types, typ)
}

func allowNull(s *jsonschema.Schema) {
	switch {
	case s.Type != "":
		s.Types = []string{"null", s.Type}
		s.Type = ""
	case len(s.Types) > 0 && !slices.Contains(s.Types, "null"):
		s.Types = append([]string{"null"}, s.Types...)
	}
}

package tool

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
)

// argumentSchema converts a tool's parameters into the OpenAPI object schema the model is
// shown, so arguments are checked against exactly what was advertised.
func argumentSchema(params map[string]*schema.ParameterInfo) (*openapi3.Schema, error) {
	if params == nil {
		params = map[string]*schema.ParameterInfo{}
	}
	sc, err := schema.NewParamsOneOfByParams(params).ToOpenAPIV3()
	if err != nil {
		return nil, err
	}
	settle(sc)
	return sc, nil
}

// settle sorts required names, which eino collects in map order, and lets optional
// properties be sent as null.
func settle(sc *openapi3.Schema) {
	if sc == nil {
		return
	}
	slices.Sort(sc.Required)
	for name, prop := range sc.Properties {
		if prop == nil || prop.Value == nil {
			continue
		}
		if !slices.Contains(sc.Required, name) {
			prop.Value.Nullable = true
		}
		settle(prop.Value)
	}
	if sc.Items != nil {
		settle(sc.Items.Value)
	}
}

// describeArgError keeps the failing path and reason but drops the schema and value dump
// kin-openapi appends to its messages.
func describeArgError(err error) string {
	var se *openapi3.SchemaError
	if !errors.As(err, &se) {
		return err.Error()
	}
	if path := se.JSONPointer(); len(path) > 0 {
		return fmt.Sprintf("field %q: %s", strings.Join(path, "."), se.Reason)
	}
	return se.Reason
}

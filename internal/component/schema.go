package component

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ParamsSchema reflects the JSON Schema of a stage parameter struct.
// Required fields are taken from `jsonschema:"required"` tags.
func ParamsSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	return schemaToMap(reflector.Reflect(v))
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return m, nil
}

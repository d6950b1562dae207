package tools

import "github.com/invopop/jsonschema"

// GenerateSchema reflects a JSON schema from an argument struct.
func GenerateSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

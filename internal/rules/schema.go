package rules

import (
	"reflect"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema derives the JSON schema of the rule wire format from the Rule
// type, so API clients can validate rule payloads against the same
// shape this package decodes. Timestamps are pinned to RFC 3339 strings.
func Schema() (*jsonschema.Schema, error) {
	return jsonschema.For[Rule](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[time.Time](): {Type: "string", Format: "date-time"},
		},
	})
}

package transfer

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"tapeview/internal/catalog"
)

// Schema describes one element of an export file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&catalog.Item{})
	s.Title = "Tape catalog item"
	return json.MarshalIndent(s, "", "  ")
}

package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of a config file. Every option is optional since missing
// options keep their defaults, and unknown options are rejected.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
	}
	return json.MarshalIndent(r.Reflect(&Config{}), "", "  ")
}

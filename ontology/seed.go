package ontology

import (
	_ "embed"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/stratumdb/stratum/errors"
)

//go:embed seed/data_types.yaml
var seedDataTypes []byte

// PrimitiveDataTypes returns the built-in data types every deployment is
// seeded with: Text, Number, Boolean, Null, Object, and Empty List.
func PrimitiveDataTypes() ([]DataType, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal(seedDataTypes, &docs); err != nil {
		return nil, errors.Wrap(err, "parsing embedded data type seed")
	}
	out := make([]DataType, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "re-encoding seed document %d", i)
		}
		var dt DataType
		if err := json.Unmarshal(raw, &dt); err != nil {
			return nil, errors.Wrapf(err, "decoding seed document %d", i)
		}
		if err := dt.Validate(); err != nil {
			return nil, errors.Wrapf(err, "seed document %d", i)
		}
		out = append(out, dt)
	}
	return out, nil
}

package sqlite

import "encoding/json"

// encodeJSON and decodeJSON serialize the small user-supplied metadata map
// stored alongside each object. encoding/json is used directly here rather
// than a third-party codec: the payload is a flat map[string]string with no
// schema evolution or performance pressure, so nothing in the pack's
// serialization libraries (used elsewhere for config and wire protocols)
// earns its keep over the standard library for this one column.
func encodeJSON(m map[string]string) ([]byte, error) {
	return json.Marshal(m)
}

func decodeJSON(b []byte, out *map[string]string) error {
	return json.Unmarshal(b, out)
}

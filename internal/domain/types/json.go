package types

import (
	"bytes"
	"encoding/json"
)

// DecodeJSON unmarshals data into v. Any failure that does not already carry
// an error kind is reported as ErrMalformedInput.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		if IsKnownKind(err) {
			return err
		}
		return Malformed("json: %v", err)
	}
	if dec.More() {
		return Malformed("json: trailing data")
	}
	return nil
}

package web

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scrollRequestSchema accepts exactly one numeric input field.
const scrollRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"target": {"type": "number"},
		"wheel": {"type": "number"},
		"touch": {"type": "number"}
	},
	"additionalProperties": false,
	"minProperties": 1,
	"maxProperties": 1
}`

var scrollSchema = jsonschema.MustCompileString("scroll-request.json", scrollRequestSchema)

// decodeScrollRequest validates raw against the scroll request schema and
// decodes it.
func decodeScrollRequest(raw []byte) (ScrollRequest, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ScrollRequest{}, fmt.Errorf("decode scroll request: %w", err)
	}
	if err := scrollSchema.Validate(payload); err != nil {
		return ScrollRequest{}, fmt.Errorf("%w: %v", errScrollRequest, err)
	}

	var req ScrollRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ScrollRequest{}, fmt.Errorf("decode scroll request: %w", err)
	}
	return req, nil
}

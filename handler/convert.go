package handler

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes a domain action's opaque Args payload into target, a
// pointer to the handler's own parameter struct. Grounded on the teacher's
// runtime/converter.go mapToStruct helper (same decoder config: weakly
// typed input so YAML's int/float/string mingling doesn't trip decoding,
// json tags for field mapping).
func DecodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building args decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("decoding action args: %w", err)
	}
	return nil
}

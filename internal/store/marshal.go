package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/liquidator/internal/ir"
)

// marshalArgs converts action arguments to canonical JSON TEXT for storage.
func marshalArgs(a ir.Action) (string, error) {
	data, err := ir.MarshalCanonical(a.Args())
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalAction rebuilds an action from its stored ID and args.
// Args are a flat object of strings (amounts are decimal strings), so no
// numeric precision is at stake in decoding.
func unmarshalAction(id, data string) (ir.Action, error) {
	var args map[string]string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return ir.Action{}, fmt.Errorf("unmarshal args: %w", err)
	}
	return ir.ParseAction(id, args)
}

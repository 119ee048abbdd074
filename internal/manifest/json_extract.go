package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ExtractJSONValue walks root along selector, one segment per nesting level,
// per spec.md §4.3's JSON selector semantics (grounded on original_source's
// extract_json_value): an empty selector is an error; each segment indexes
// an array (numeric segment) or keys an object (string segment), and any
// mismatch is a hard error naming the offending segment.
func ExtractJSONValue(root json.RawMessage, selector []string) (json.RawMessage, error) {
	if len(selector) == 0 {
		return nil, fmt.Errorf("json selector must not be empty")
	}

	var node interface{}
	if err := json.Unmarshal(root, &node); err != nil {
		return nil, fmt.Errorf("extracting json value: %w", err)
	}

	cur := node
	for i, seg := range selector {
		switch v := cur.(type) {
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("segment %d (%q): expected an array index", i, seg)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("Array index %d out of bounds at segment %d", idx, i)
			}
			cur = v[idx]
		case map[string]interface{}:
			val, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("key %q not found at segment %d", seg, i)
			}
			cur = val
		default:
			return nil, fmt.Errorf("segment %d (%q): cannot descend into a scalar value", i, seg)
		}
	}

	return json.Marshal(cur)
}

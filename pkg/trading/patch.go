package trading

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Patch is a partial record keyed by JSON field name. It is the body of
// create and update requests and the overlay of an optimistic update.
type Patch map[string]any

// Keys returns the patched field names in sorted order
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge shallow-merges patch into item: every top-level field named in the
// patch replaces the item's field, all other fields are kept.
func Merge[T any](item T, patch Patch) (T, error) {
	if len(patch) == 0 {
		return item, nil
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return item, fmt.Errorf("marshal item: %w", err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return item, fmt.Errorf("item is not an object: %w", err)
	}

	for k, v := range patch {
		enc, err := json.Marshal(v)
		if err != nil {
			return item, fmt.Errorf("marshal patch field %s: %w", k, err)
		}
		fields[k] = enc
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return item, fmt.Errorf("marshal merged item: %w", err)
	}

	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return item, fmt.Errorf("decode merged item: %w", err)
	}
	return out, nil
}

// FilterStocks keeps the stocks whose code matches a doublestar glob
// pattern such as "60*" or "{000,300}*". An empty pattern keeps everything.
func FilterStocks(stocks []Stock, pattern string) ([]Stock, error) {
	if pattern == "" {
		return stocks, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid code pattern: %q", pattern)
	}

	result := make([]Stock, 0, len(stocks))
	for _, s := range stocks {
		ok, err := doublestar.Match(pattern, s.Code)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", s.Code, err)
		}
		if ok {
			result = append(result, s)
		}
	}
	return result, nil
}

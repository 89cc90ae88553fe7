package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint derives a deterministic cache key from an operation name and
// its semantic parameters. Parameters are serialized with keys in sorted
// order so two requests built in different orders hash identically, and each
// value is rendered through encoding/json (which itself sorts map keys) so
// nested structures stay stable as well.
func Fingerprint(operation string, params map[string]any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", operation)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := json.Marshal(params[k])
		if err != nil {
			// Unmarshalable values still need a stable rendering.
			v = []byte(fmt.Sprintf("%#v", params[k]))
		}
		fmt.Fprintf(h, "%s=%s\n", k, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

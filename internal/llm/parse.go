package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractArray locates the first JSON array in model output and returns its
// elements. Output wrapped in prose or code fences is tolerated. A single
// object is treated as a one-element array. It returns nil when no valid
// JSON is found.
func ExtractArray(raw string) []gjson.Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if gjson.Valid(raw) {
		return asArray(gjson.Parse(raw))
	}

	for start := strings.IndexAny(raw, "[{"); start >= 0; {
		open := raw[start]
		closer := byte(']')
		if open == '{' {
			closer = '}'
		}
		if end := strings.LastIndexByte(raw, closer); end > start {
			if candidate := raw[start : end+1]; gjson.Valid(candidate) {
				return asArray(gjson.Parse(candidate))
			}
		}
		next := strings.IndexAny(raw[start+1:], "[{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}

func asArray(r gjson.Result) []gjson.Result {
	switch {
	case r.IsArray():
		return r.Array()
	case r.IsObject():
		return []gjson.Result{r}
	}
	return nil
}

package config

import (
	"encoding/json"
	"fmt"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// mergeOverDefaults decodes the persisted document and overlays it on the
// defaults key by key. Nested objects are merged recursively; a persisted
// leaf wins unless it is null or its JSON type differs from the default's.
func mergeOverDefaults(defaults types.Config, persisted []byte) (types.Config, error) {
	var saved map[string]interface{}
	if err := json.Unmarshal(persisted, &saved); err != nil {
		return defaults, err
	}

	base, err := toMap(defaults)
	if err != nil {
		return defaults, err
	}

	merged := deepMerge(base, saved, "")

	data, err := json.Marshal(merged)
	if err != nil {
		return defaults, fmt.Errorf("marshal merged config: %w", err)
	}
	var cfg types.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaults, fmt.Errorf("decode merged config: %w", err)
	}
	return cfg, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func deepMerge(dst, src map[string]interface{}, prefix string) map[string]interface{} {
	for key, sv := range src {
		dv, known := dst[key]
		if !known {
			// Keys the application does not know are dropped on the next save.
			continue
		}
		if sv == nil {
			continue
		}

		switch d := dv.(type) {
		case map[string]interface{}:
			s, ok := sv.(map[string]interface{})
			if !ok {
				logger.Warn("ignoring config value of wrong type", logger.String("key", prefix+key))
				continue
			}
			dst[key] = deepMerge(d, s, prefix+key+".")
		default:
			if !sameJSONType(dv, sv) {
				logger.Warn("ignoring config value of wrong type", logger.String("key", prefix+key))
				continue
			}
			dst[key] = sv
		}
	}
	return dst
}

func sameJSONType(a, b interface{}) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case float64:
		f, ok := b.(float64)
		// Integers only; thread counts are the only numbers in the document.
		return ok && f == float64(int64(f))
	case bool:
		_, ok := b.(bool)
		return ok
	case []interface{}:
		_, ok := b.([]interface{})
		return ok
	}
	return false
}

package models

import (
	"encoding/json"
	"strconv"
)

// ToolResults is the structured output of the domain tools invoked during a
// turn, keyed by field name. Values may be numbers, strings, or shallowly
// nested maps (e.g. {"sleep": {"deep_minutes": 94}}). It is the ground truth
// the numeric validator checks generated claims against.
type ToolResults map[string]interface{}

// FlattenNumeric walks the result tree and returns every numeric leaf keyed
// by its dotted path. Non-numeric leaves are dropped; numeric strings are
// parsed so that tools returning JSON-decoded text still count as ground
// truth.
func (tr ToolResults) FlattenNumeric() map[string]float64 {
	out := make(map[string]float64)
	flattenInto(out, "", map[string]interface{}(tr))
	return out
}

func flattenInto(out map[string]float64, prefix string, node map[string]interface{}) {
	for key, val := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := val.(type) {
		case map[string]interface{}:
			flattenInto(out, path, v)
		default:
			if f, ok := asFloat(v); ok {
				out[path] = f
			}
		}
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

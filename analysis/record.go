package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/croscope/croscope/models"
)

// NormalizeRecord flattens an extracted object into an AnalysisRecord and
// stamps it with the request's identity. Whatever the model claimed for
// Platform/URL is discarded; scalar values are stringified and nested
// structures are kept as compact JSON so no field is silently dropped.
func NormalizeRecord(obj map[string]any, req models.PageRequest) models.AnalysisRecord {
	rec := make(models.AnalysisRecord, len(obj)+2)
	for k, v := range obj {
		rec[k] = stringify(v)
	}
	rec.Stamp(req)
	return rec
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers arrive as float64; render integers without the
		// trailing ".0" that %v would produce via scientific formatting.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

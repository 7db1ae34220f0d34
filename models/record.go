package models

import "sort"

// Reserved record keys. KeyPlatform and KeyURL are always present and always
// carry the PageRequest's ground truth; KeyError marks a failed page.
const (
	KeyPlatform = "Platform"
	KeyURL      = "URL"
	KeyError    = "error"
)

// AnalysisRecord is the normalized output unit for one page: a flat mapping
// from field name to string value. Beyond the reserved keys the field set is
// model-determined and may differ between records, so table consumers must
// tolerate a ragged schema.
type AnalysisRecord map[string]string

// Keys returns the record's non-identity keys in a deterministic order:
// alphabetical, with the error key forced last so failure columns trail
// the model-derived ones in tabular output.
func (r AnalysisRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	hasError := false
	for k := range r {
		switch k {
		case KeyPlatform, KeyURL:
		case KeyError:
			hasError = true
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if hasError {
		keys = append(keys, KeyError)
	}
	return keys
}

// Failed reports whether the record represents a failed page.
func (r AnalysisRecord) Failed() bool {
	_, ok := r[KeyError]
	return ok
}

// Stamp overwrites the record's identity keys with the request's ground
// truth, discarding whatever the model claimed them to be. This guarantees
// every record is joinable by a caller-controlled identity.
func (r AnalysisRecord) Stamp(req PageRequest) {
	r[KeyPlatform] = req.DisplayName
	r[KeyURL] = req.URL
}

// FailureRecord builds the record for a page whose pipeline failed at the
// given stage ("capture", "model", "parse"). It carries identity plus the
// error description and nothing model-derived.
func FailureRecord(req PageRequest, stage string, err error) AnalysisRecord {
	r := AnalysisRecord{
		KeyError: stage + ": " + err.Error(),
	}
	r.Stamp(req)
	return r
}

// SystemRecord builds the single synthetic record emitted when the shared
// collaborator setup itself fails, so callers always receive a table.
func SystemRecord(err error) AnalysisRecord {
	return AnalysisRecord{
		KeyPlatform: ErrCodeSystem,
		KeyURL:      "",
		KeyError:    err.Error(),
	}
}

package analysis

import (
	"testing"

	"github.com/croscope/croscope/models"
)

func TestNormalizeRecord_StampsIdentity(t *testing.T) {
	req := models.PageRequest{URL: "https://acme.com/x", DisplayName: "acme"}

	// The model lied about both identity fields.
	obj := map[string]any{
		"Platform":   "SomethingElse",
		"URL":        "https://wrong.example",
		"Main Offer": "CRM",
	}

	rec := NormalizeRecord(obj, req)
	if rec[models.KeyPlatform] != "acme" {
		t.Errorf("Platform = %q, want request identity", rec[models.KeyPlatform])
	}
	if rec[models.KeyURL] != "https://acme.com/x" {
		t.Errorf("URL = %q, want request identity", rec[models.KeyURL])
	}
	if rec["Main Offer"] != "CRM" {
		t.Errorf("Main Offer = %q", rec["Main Offer"])
	}
}

func TestNormalizeRecord_Stringify(t *testing.T) {
	req := models.PageRequest{URL: "u", DisplayName: "n"}

	obj := map[string]any{
		"string":  "plain",
		"integer": float64(3),
		"float":   1.5,
		"boolean": true,
		"null":    nil,
		"nested":  map[string]any{"a": "b"},
		"list":    []any{"x", "y"},
	}

	rec := NormalizeRecord(obj, req)

	tests := []struct{ key, want string }{
		{"string", "plain"},
		{"integer", "3"},
		{"float", "1.5"},
		{"boolean", "true"},
		{"null", ""},
		{"nested", `{"a":"b"}`},
		{"list", `["x","y"]`},
	}
	for _, tt := range tests {
		if rec[tt.key] != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, rec[tt.key], tt.want)
		}
	}
}

func TestFailureRecord(t *testing.T) {
	req := models.PageRequest{URL: "https://acme.com", DisplayName: "acme"}
	err := models.NewAnalysisError(models.ErrCodeCaptureTimeout, "page load exceeded deadline", nil)

	rec := models.FailureRecord(req, "capture", err)
	if !rec.Failed() {
		t.Error("failure record should report Failed")
	}
	if rec[models.KeyPlatform] != "acme" || rec[models.KeyURL] != "https://acme.com" {
		t.Error("failure record should carry request identity")
	}
	if rec[models.KeyError] == "" {
		t.Error("failure record should carry the error text")
	}
}

package models

import "testing"

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"first path segment", "https://www.coursera.org/courses?query=go", "courses"},
		{"nested path keeps first segment", "https://site.com/products/crm/pricing", "products"},
		{"bare host", "https://udemy.com", "udemy_com"},
		{"host with trailing slash", "https://udemy.com/", "udemy_com"},
		{"dashes become underscores", "https://my-site.io/top-deals", "top_deals"},
		{"uppercase lowered", "https://EXAMPLE.com/Pricing", "pricing"},
		{"subdomain in host fallback", "https://app.hey.com", "app_hey_com"},
		{"no scheme", "example.com/landing", "landing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveName(tt.url); got != tt.want {
				t.Errorf("DeriveName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestPageRequests_ManualSwitch(t *testing.T) {
	req := AnalyzeRequest{URLs: []string{
		"https://a.com/landing",
		"https://b.com/other",
	}}

	pages := req.PageRequests(func(name string) bool { return name == "landing" })
	if pages[0].Mode != ModeManual {
		t.Errorf("page 0 mode = %q, want manual (upload exists)", pages[0].Mode)
	}
	if pages[1].Mode != ModeAuto {
		t.Errorf("page 1 mode = %q, want auto", pages[1].Mode)
	}
}

func TestAnalysisRecord_Keys(t *testing.T) {
	rec := AnalysisRecord{
		KeyPlatform: "a",
		KeyURL:      "u",
		"Zeta":      "1",
		"Alpha":     "2",
		KeyError:    "boom",
	}

	keys := rec.Keys()
	want := []string{"Alpha", "Zeta", "error"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestSystemRecord(t *testing.T) {
	rec := SystemRecord(NewAnalysisError(ErrCodeSystem, "browser never launched", nil))
	if !rec.Failed() {
		t.Error("system record should report Failed")
	}
	if rec[KeyPlatform] != ErrCodeSystem {
		t.Errorf("Platform = %q, want the SYSTEM_ERROR marker", rec[KeyPlatform])
	}
}

package capture

import (
	"bytes"
	"testing"

	"github.com/croscope/croscope/models"
)

func newTestStore(t *testing.T) *ManualStore {
	t.Helper()
	store, err := NewManualStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewManualStore failed: %v", err)
	}
	return store
}

func TestManualStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	data := []byte("fake png bytes")

	name, err := store.Save("landing.png", data)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "landing" {
		t.Errorf("saved name = %q, want %q", name, "landing")
	}

	if !store.Has("landing") {
		t.Error("Has should find the saved screenshot")
	}

	got, err := store.Load("landing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("loaded bytes differ from saved bytes")
	}
}

func TestManualStore_SuffixConventionAccepted(t *testing.T) {
	store := newTestStore(t)

	// Uploads may already carry the convention suffix; the key must not
	// double it.
	name, err := store.Save("pricing_manual.png", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "pricing" {
		t.Errorf("saved name = %q, want %q", name, "pricing")
	}
	if !store.Has("pricing") {
		t.Error("Has should find the screenshot under the bare key")
	}
}

func TestManualStore_NameNormalized(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save("My-Landing.Page.png", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "my_landing_page" {
		t.Errorf("saved name = %q, want normalized key", name)
	}
}

func TestManualStore_PathTraversalRejected(t *testing.T) {
	store := newTestStore(t)

	// filepath.Base strips directories, so the upload lands inside the
	// store under its base name instead of escaping it.
	name, err := store.Save("../../etc/passwd.png", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "passwd" {
		t.Errorf("saved name = %q, want %q", name, "passwd")
	}
}

func TestManualStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("never_uploaded")
	if err == nil {
		t.Fatal("expected error for missing screenshot")
	}
	if !models.IsCode(err, models.ErrCodeManualMissing) {
		t.Errorf("error code = %s, want %s", models.ErrorCode(err), models.ErrCodeManualMissing)
	}
}

func TestManualStore_HasMissing(t *testing.T) {
	store := newTestStore(t)
	if store.Has("nothing") {
		t.Error("Has should be false for a name never uploaded")
	}
}

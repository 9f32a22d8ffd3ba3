package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DuplicateOilIDsKeepFirst(t *testing.T) {
	c := New([]AromaOil{
		{ID: "lavender-dream", Name: "Lavender Dream", PriceCents: 2400},
		{ID: "citrus-burst", Name: "Citrus Burst", PriceCents: 1900},
		{ID: "lavender-dream", Name: "Lavender Dream (dupe)", PriceCents: 9999},
	}, nil, nil, nil)

	if got := len(c.Oils()); got != 2 {
		t.Fatalf("len(Oils) = %d; want 2", got)
	}
	o, ok := c.Oil("lavender-dream")
	if !ok {
		t.Fatal("lookup failed")
	}
	if o.Name != "Lavender Dream" || o.PriceCents != 2400 {
		t.Fatalf("duplicate did not keep first occurrence: %+v", o)
	}
}

func TestPriceCents(t *testing.T) {
	c := Default()
	if p, ok := c.PriceCents("citrus-burst"); !ok || p != 1900 {
		t.Fatalf("PriceCents(citrus-burst) = (%d, %v)", p, ok)
	}
	if _, ok := c.PriceCents("no-such-oil"); ok {
		t.Fatal("unknown oil resolved a price")
	}
}

func TestDefault_ReferencesAreConsistent(t *testing.T) {
	c := Default()
	if len(c.Plans()) == 0 {
		t.Fatal("no plans")
	}
	if got := c.DefaultPlan().ID; got != "plan-6" {
		t.Fatalf("DefaultPlan = %q; want plan-6", got)
	}
	for _, d := range c.Devices() {
		if _, ok := c.DeviceType(d.DeviceTypeID); !ok {
			t.Errorf("device %s references unknown type %s", d.ID, d.DeviceTypeID)
		}
		if !c.HasDevice(d.ID) {
			t.Errorf("HasDevice(%s) = false", d.ID)
		}
	}
	if len(c.DeviceIDs()) != len(c.Devices()) {
		t.Fatal("DeviceIDs length mismatch")
	}
}

func TestFromJSON_PartialOverrideKeepsDefaults(t *testing.T) {
	c, err := FromJSON([]byte(`{"oils": [{"id": "solo", "name": "Solo", "price_cents": 1000}]}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if len(c.Oils()) != 1 {
		t.Fatalf("len(Oils) = %d; want 1", len(c.Oils()))
	}
	if len(c.Plans()) != len(Default().Plans()) {
		t.Fatal("plans should fall back to defaults")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte(`{"plans": [{"id": "p1", "duration_cycles": 6}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.DefaultPlan().ID != "p1" {
		t.Fatalf("DefaultPlan = %q; want p1", c.DefaultPlan().ID)
	}
	if _, err := LoadFile(filepath.Join(dir, "nope.json")); err == nil {
		t.Fatal("missing file should error")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0o600)
	if _, err := LoadFile(bad); err == nil {
		t.Fatal("malformed file should error")
	}
}

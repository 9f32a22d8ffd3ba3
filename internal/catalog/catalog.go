// Package catalog holds the static reference data of the shop: aroma oils,
// diffuser device types, subscription plans, and the demo device fleet. The
// tables are read-only after construction and safe for concurrent use.
//
// Upstream data occasionally carries duplicate oil ids; every id-indexed
// lookup keeps the FIRST occurrence and silently drops later ones, so
// duplicate ids can never surface as errors or ambiguous lookups.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AromaOil is one sellable fragrance oil.
type AromaOil struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	DisplayColor string `json:"display_color"`
	PriceCents   int64  `json:"price_cents"`
}

// DeviceType describes one diffuser hardware model.
type DeviceType struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	OilCapacityML int    `json:"oil_capacity_ml"`
	Coverage      string `json:"coverage"`
}

// Plan is one subscription plan offering.
type Plan struct {
	ID              string `json:"id"`
	DurationCycles  int    `json:"duration_cycles"`
	DiscountPercent int    `json:"discount_percent"`
	Description     string `json:"description"`
}

// Device is one physical diffuser registered at one site.
type Device struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	DeviceTypeID string    `json:"device_type_id"`
	Online       bool      `json:"online"`
	InstalledAt  time.Time `json:"installed_at"`
}

// Catalog is the immutable, id-indexed bundle of all reference tables.
type Catalog struct {
	oils        []AromaOil
	deviceTypes []DeviceType
	plans       []Plan
	devices     []Device

	oilByID        map[string]AromaOil
	deviceTypeByID map[string]DeviceType
	planByID       map[string]Plan
}

// New builds a Catalog from raw tables, deduplicating ids first-wins.
func New(oils []AromaOil, deviceTypes []DeviceType, plans []Plan, devices []Device) *Catalog {
	c := &Catalog{
		deviceTypes:    deviceTypes,
		plans:          plans,
		devices:        devices,
		oilByID:        make(map[string]AromaOil, len(oils)),
		deviceTypeByID: make(map[string]DeviceType, len(deviceTypes)),
		planByID:       make(map[string]Plan, len(plans)),
	}
	c.oils = make([]AromaOil, 0, len(oils))
	for _, o := range oils {
		if _, dup := c.oilByID[o.ID]; dup {
			continue
		}
		c.oilByID[o.ID] = o
		c.oils = append(c.oils, o)
	}
	for _, dt := range deviceTypes {
		if _, dup := c.deviceTypeByID[dt.ID]; !dup {
			c.deviceTypeByID[dt.ID] = dt
		}
	}
	for _, p := range plans {
		if _, dup := c.planByID[p.ID]; !dup {
			c.planByID[p.ID] = p
		}
	}
	return c
}

// Oils returns the oil table in catalog order (deduplicated).
func (c *Catalog) Oils() []AromaOil { return c.oils }

// Oil looks up an oil by id.
func (c *Catalog) Oil(id string) (AromaOil, bool) {
	o, ok := c.oilByID[id]
	return o, ok
}

// PriceCents resolves the unit price of an oil; ok is false for unknown ids.
func (c *Catalog) PriceCents(oilID string) (int64, bool) {
	o, ok := c.oilByID[oilID]
	return o.PriceCents, ok
}

// DeviceTypes returns the device-type table.
func (c *Catalog) DeviceTypes() []DeviceType { return c.deviceTypes }

// DeviceType looks up a device type by id.
func (c *Catalog) DeviceType(id string) (DeviceType, bool) {
	dt, ok := c.deviceTypeByID[id]
	return dt, ok
}

// Plans returns the plan table.
func (c *Catalog) Plans() []Plan { return c.plans }

// Plan looks up a plan by id.
func (c *Catalog) Plan(id string) (Plan, bool) {
	p, ok := c.planByID[id]
	return p, ok
}

// DefaultPlan returns the first plan in the table (the enrollment default).
func (c *Catalog) DefaultPlan() Plan {
	if len(c.plans) == 0 {
		return Plan{}
	}
	return c.plans[0]
}

// Devices returns the registered device fleet.
func (c *Catalog) Devices() []Device { return c.devices }

// DeviceIDs returns the fleet's ids in table order.
func (c *Catalog) DeviceIDs() []string {
	ids := make([]string, len(c.devices))
	for i, d := range c.devices {
		ids[i] = d.ID
	}
	return ids
}

// HasDevice reports whether id belongs to the registered fleet.
func (c *Catalog) HasDevice(id string) bool {
	for _, d := range c.devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

// document is the JSON shape of an external catalog file.
type document struct {
	Oils        []AromaOil   `json:"oils"`
	DeviceTypes []DeviceType `json:"device_types"`
	Plans       []Plan       `json:"plans"`
	Devices     []Device     `json:"devices"`
}

// FromJSON builds a Catalog from a JSON document with the shape
// {"oils": [...], "device_types": [...], "plans": [...], "devices": [...]}.
// Tables absent from the document fall back to the built-in defaults so a
// partial override (say, oils only) stays usable.
func FromJSON(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	def := Default()
	if doc.Oils == nil {
		doc.Oils = def.oils
	}
	if doc.DeviceTypes == nil {
		doc.DeviceTypes = def.deviceTypes
	}
	if doc.Plans == nil {
		doc.Plans = def.plans
	}
	if doc.Devices == nil {
		doc.Devices = def.devices
	}
	return New(doc.Oils, doc.DeviceTypes, doc.Plans, doc.Devices), nil
}

// LoadFile reads a catalog document from path.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(b)
}

// Default returns the catalog bundled with the application.
func Default() *Catalog {
	installed := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return New(
		[]AromaOil{
			{ID: "lavender-dream", Name: "Lavender Dream", Category: "floral", Description: "Soft French lavender with a hint of vanilla.", DisplayColor: "#9b7ed9", PriceCents: 2400},
			{ID: "citrus-burst", Name: "Citrus Burst", Category: "fresh", Description: "Sicilian orange and grapefruit zest.", DisplayColor: "#f5a623", PriceCents: 1900},
			{ID: "ocean-breeze", Name: "Ocean Breeze", Category: "fresh", Description: "Sea salt, driftwood, and cool air.", DisplayColor: "#4aa3df", PriceCents: 2100},
			{ID: "cedar-atlas", Name: "Cedar Atlas", Category: "woody", Description: "Moroccan cedarwood over warm amber.", DisplayColor: "#8d6748", PriceCents: 2600},
			{ID: "white-tea", Name: "White Tea", Category: "subtle", Description: "Light tea leaves with white musk.", DisplayColor: "#dcd6c5", PriceCents: 2200},
			{ID: "forest-rain", Name: "Forest Rain", Category: "woody", Description: "Wet pine and green moss.", DisplayColor: "#4d7c50", PriceCents: 2300},
		},
		[]DeviceType{
			{ID: "halo-mini", Name: "Halo Mini", OilCapacityML: 120, Coverage: "up to 40 m²"},
			{ID: "halo-one", Name: "Halo One", OilCapacityML: 300, Coverage: "up to 120 m²"},
			{ID: "halo-pro", Name: "Halo Pro", OilCapacityML: 900, Coverage: "up to 400 m²"},
		},
		[]Plan{
			{ID: "plan-6", DurationCycles: 6, DiscountPercent: 10, Description: "6 monthly deliveries, 10% off oils"},
			{ID: "plan-12", DurationCycles: 12, DiscountPercent: 20, Description: "12 monthly deliveries, 20% off oils"},
		},
		[]Device{
			{ID: "dev-living", Name: "Living room", Location: "Home — ground floor", DeviceTypeID: "halo-one", Online: true, InstalledAt: installed(2024, time.March, 12)},
			{ID: "dev-bedroom", Name: "Bedroom", Location: "Home — first floor", DeviceTypeID: "halo-mini", Online: true, InstalledAt: installed(2024, time.March, 12)},
			{ID: "dev-studio", Name: "Studio", Location: "Annex", DeviceTypeID: "halo-mini", Online: false, InstalledAt: installed(2024, time.August, 2)},
		},
	)
}

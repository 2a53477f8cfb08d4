package domain

import (
	"fmt"
	"strings"

	dErrors "carboncast/pkg/domain-errors"
)

// Sector is an economic domain the service forecasts emissions for.
// Invariant: the value must be one of the supported sectors.
//
// Usage: construct via ParseSector at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Sector string

// Supported sectors, in the order they are reported and trained.
const (
	SectorElectricity   Sector = "electricity"
	SectorTransport     Sector = "transport"
	SectorManufacturing Sector = "manufacturing"
	SectorConstruction  Sector = "construction"
	SectorAgriculture   Sector = "agriculture"
)

// sectorProfile holds the fixed conversion and generation parameters.
type sectorProfile struct {
	factor   float64 // kg CO₂ per input unit
	min, max float64 // synthetic input range [min, max)
	unit     string
}

// sectorProfiles is the single source of truth for valid sectors.
var sectorProfiles = map[Sector]sectorProfile{
	SectorElectricity:   {factor: 0.92, min: 0, max: 2000, unit: "kWh"},
	SectorTransport:     {factor: 0.411, min: 0, max: 1000, unit: "mile"},
	SectorManufacturing: {factor: 50, min: 0, max: 200, unit: "unit"},
	SectorConstruction:  {factor: 100, min: 0, max: 100, unit: "ton"},
	SectorAgriculture:   {factor: 200, min: 0, max: 60, unit: "ton"},
}

var sectorOrder = []Sector{
	SectorElectricity,
	SectorTransport,
	SectorManufacturing,
	SectorConstruction,
	SectorAgriculture,
}

// EmissionUnit is the unit every footprint is reported in.
const EmissionUnit = "kg CO₂"

// AllSectors returns the supported sectors in canonical order.
func AllSectors() []Sector {
	out := make([]Sector, len(sectorOrder))
	copy(out, sectorOrder)
	return out
}

// ParseSector constructs a Sector from external input. Surrounding
// whitespace and letter case are ignored, so "Electricity" names the same
// sector as "electricity"; anything else must match a sector name exactly.
//
// Errors: returns CodeValidation listing every valid sector when the value is
// empty or unsupported.
func ParseSector(s string) (Sector, error) {
	sec := Sector(strings.ToLower(strings.TrimSpace(s)))
	if !sec.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, invalidSectorMessage())
	}
	return sec, nil
}

func invalidSectorMessage() string {
	names := make([]string, len(sectorOrder))
	for i, s := range sectorOrder {
		names[i] = string(s)
	}
	return fmt.Sprintf("Invalid domain. Must be one of: %s", strings.Join(names, ", "))
}

// IsValid checks if the sector is one of the supported enum values.
func (s Sector) IsValid() bool {
	_, ok := sectorProfiles[s]
	return ok
}

// String returns the string representation of the sector.
func (s Sector) String() string {
	return string(s)
}

// EmissionFactor returns kg CO₂ per input unit, or 0 for an invalid sector.
func (s Sector) EmissionFactor() float64 {
	return sectorProfiles[s].factor
}

// InputRange returns the half-open range synthetic inputs are drawn from.
func (s Sector) InputRange() (min, max float64) {
	p := sectorProfiles[s]
	return p.min, p.max
}

// InputUnit names the unit the raw input is expressed in.
func (s Sector) InputUnit() string {
	return sectorProfiles[s].unit
}

// CurrentFootprint converts a raw input into kg CO₂.
func (s Sector) CurrentFootprint(input float64) float64 {
	return input * s.EmissionFactor()
}

package hru

import (
	"fmt"
	"time"
)

// Atrea RD5 register addresses.
//
// Writes are two-phase: the control register is written 0 to unlock the
// change, then the target register receives the value after a settle
// delay. The unit ignores target writes without the preceding unlock.
const (
	atreaRegPowerRead = 10704
	atreaRegModeRead  = 10705
	atreaRegTempRead  = 10706

	atreaRegPowerCtrl = 10700
	atreaRegModeCtrl  = 10701
	atreaRegTempCtrl  = 10702

	atreaRegPowerWrite = 10708
	atreaRegModeWrite  = 10709
	atreaRegTempWrite  = 10710
)

// atreaSettleDelay is how long the RD5 needs between the unlock write
// and the value write.
const atreaSettleDelay = 100 * time.Millisecond

// Catalog holds the register maps of all known device families.
type Catalog struct {
	families map[string]*RegisterMap
}

// NewCatalog returns a catalog with all built-in device families
// registered.
func NewCatalog() *Catalog {
	c := &Catalog{families: make(map[string]*RegisterMap)}
	c.register(atreaRD5())
	return c
}

func (c *Catalog) register(m *RegisterMap) {
	c.families[m.Family] = m
}

// Lookup returns the register map for a device family.
//
// Returns ErrDeviceNotConfigured for unknown families; this is a
// configuration precondition, never retried.
func (c *Catalog) Lookup(family string) (*RegisterMap, error) {
	m, ok := c.families[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotConfigured, family)
	}
	return m, nil
}

// Families returns the names of all registered device families.
func (c *Catalog) Families() []string {
	names := make([]string, 0, len(c.families))
	for name := range c.families {
		names = append(names, name)
	}
	return names
}

// constVal is a helper for constant write-step values.
func constVal(v uint16) *uint16 {
	return &v
}

// atreaRD5 builds the register map for the Atrea RD5 unit family.
// Mode labels are the Czech display names the unit documents.
func atreaRD5() *RegisterMap {
	return &RegisterMap{
		Family: "atrea-rd5",
		Reads: map[Quantity]ReadRegister{
			QuantityPower: {
				Address: atreaRegPowerRead,
				Kind:    KindHolding,
				Unit:    "%",
			},
			QuantityMode: {
				Address: atreaRegModeRead,
				Kind:    KindHolding,
			},
			QuantityTemperature: {
				Address:   atreaRegTempRead,
				Kind:      KindHolding,
				Scale:     0.1,
				Precision: 1,
				Unit:      "°C",
			},
		},
		Writes: map[Quantity]WritePlan{
			QuantityPower: {Steps: []WriteStep{
				{Address: atreaRegPowerCtrl, Kind: KindHolding, Const: constVal(0), Settle: atreaSettleDelay},
				{Address: atreaRegPowerWrite, Kind: KindHolding},
			}},
			QuantityMode: {Steps: []WriteStep{
				{Address: atreaRegModeCtrl, Kind: KindHolding, Const: constVal(0), Settle: atreaSettleDelay},
				{Address: atreaRegModeWrite, Kind: KindHolding},
			}},
			QuantityTemperature: {Steps: []WriteStep{
				{Address: atreaRegTempCtrl, Kind: KindHolding, Const: constVal(0), Settle: atreaSettleDelay},
				{Address: atreaRegTempWrite, Kind: KindHolding, Scale: 0.1},
			}},
		},
		Modes: map[uint16]string{
			0: "Vypnuto",
			1: "Auto",
			2: "Větrání",
			3: "Cirkulace+Větrání",
			4: "Cirkulace",
			5: "Noční předchlazení",
			6: "Rozvážení",
			7: "Přetlak",
		},
	}
}

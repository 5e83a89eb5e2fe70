// Package dmp identifies Renesas digital multiphase (DMP) PMBus
// controllers and carries the per-model constants needed to program them.
//
// The controllers come in two generations with disjoint 8-bit silicon ID
// spaces.  The line counts and register addresses below come straight from
// the Renesas Digital Multiphase Programming Guide; they have no derivable
// structure, so a new generation needs its own documented constants.
package dmp

import (
	"fmt"
	"strings"
)

// Generation selects the constant set for a device family.
type Generation int

const (
	Gen2 Generation = iota
	Gen2Five
)

func (g Generation) String() string {
	if g == Gen2 {
		return "Gen 2"
	}
	return "Gen 2.5"
}

var gen2Models = map[uint8]string{
	0x63: "ISL68220",
	0x62: "ISL68221",
	0x61: "ISL68222",
	0x53: "ISL68223",
	0x52: "ISL68224",
	0x51: "ISL68225",
	0x50: "ISL68226",
	0x4F: "ISL68227",
	0x4E: "ISL68229",
	0x6B: "ISL68233",
	0x4D: "ISL68236",
	0x4B: "ISL68239",
	0x3E: "ISL69222",
	0x3D: "ISL69223",
	0x3C: "ISL69224",
	0x3B: "ISL69225",
	0x3A: "ISL69227",
	0x39: "ISL69228",
	0x43: "ISL69234",
	0x42: "ISL69236",
	0x66: "ISL69237",
	0x40: "ISL69238",
	0x41: "ISL69239",
	0x58: "ISL69242",
	0x59: "ISL69243",
	0x48: "ISL69247",
	0x47: "ISL69248",
	0x6D: "ISL69249",
	0x67: "ISL69254",
	0x38: "ISL69255",
	0x37: "ISL69256",
	0x46: "ISL69259",
	0x6E: "ISL69260",
	0x57: "ISL69267",
	0x3F: "ISL69268",
	0x55: "ISL69269",
	0x64: "RAA228000",
	0x65: "RAA228004",
	0x6C: "RAA228006",
	0x69: "RAA229001",
	0x6A: "RAA229004",
	0x6F: "RAA229022",
	0x7E: "RAA229126",
}

var gen2FiveModels = map[uint8]string{
	0x73: "RAA228218",
	0x75: "RAA228227",
	0x76: "RAA228228",
	0x99: "RAA229618",
}

func init() {
	/* The two ID spaces must be disjoint; an overlap is a defect in the
	 * tables above, not a runtime condition. */
	for id, name := range gen2Models {
		if other, ok := gen2FiveModels[id]; ok {
			panic(fmt.Sprintf("dmp: id 0x%02x matches both %s and %s", id, name, other))
		}
	}
}

// Device is one identified controller model.  Construct it with FromID or
// FromName only.
type Device struct {
	gen  Generation
	id   uint8
	name string
}

// UnknownDeviceError reports an 8-bit ID or a name that matches no model in
// either generation table.
type UnknownDeviceError struct {
	ID   uint8
	Name string
}

func (e *UnknownDeviceError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s does not match a Renesas DMP device", e.Name)
	}
	return fmt.Sprintf("unknown device id 0x%02x", e.ID)
}

// FromID resolves a silicon ID against both generation tables.
func FromID(id uint8) (Device, error) {
	name2, ok2 := gen2Models[id]
	name25, ok25 := gen2FiveModels[id]

	switch {
	case ok2 && ok25:
		/* Unreachable: init verified the tables are disjoint. */
		panic(fmt.Sprintf("dmp: id 0x%02x matches both %s and %s", id, name2, name25))
	case ok2:
		return Device{gen: Gen2, id: id, name: name2}, nil
	case ok25:
		return Device{gen: Gen2Five, id: id, name: name25}, nil
	}

	return Device{}, &UnknownDeviceError{ID: id}
}

// FromName resolves a model by its display name, case-insensitively.  The
// scan over the full ID space is deliberate: the space is small and this
// runs once per invocation.
func FromName(name string) (Device, error) {
	search := strings.ToUpper(name)

	for id := 0; id < 255; id++ {
		if d, err := FromID(uint8(id)); err == nil && d.name == search {
			return d, nil
		}
	}

	return Device{}, &UnknownDeviceError{Name: name}
}

func (d Device) String() string { return d.name }

// ID returns the model's silicon ID byte.
func (d Device) ID() uint8 { return d.id }

// Generation returns the device family the model belongs to.
func (d Device) Generation() Generation { return d.gen }

/* Only a single configuration (slot 0) is supported. */
const numConfigs = 1

// Lines is the total header+data record count a valid image for this model
// must contain.
func (d Device) Lines() int {
	if d.gen == Gen2 {
		return 290 + 358*numConfigs
	}
	return 273 + 309*numConfigs
}

// CRCLine is the file line whose data payload carries the image CRC.  The
// offset is fixed by the programming guide.
func (d Device) CRCLine() int {
	if d.gen == Gen2 {
		return 600
	}
	return 526
}

// SlotAddr is the DMA address of the remaining-NVM-slot count.
func (d Device) SlotAddr() uint16 {
	if d.gen == Gen2 {
		return 0x00c2
	}
	return 0x00c4
}

// CRCAddr is the DMA address of the OTP configuration CRC.
func (d Device) CRCAddr() uint16 {
	if d.gen == Gen2 {
		return 0x003f
	}
	return 0x003c
}

// ProgrammerStatusAddr is the DMA address of the 16-bit programmer status
// word polled after flashing.
func (d Device) ProgrammerStatusAddr() uint16 { return 0x0707 }

// BankStatusAddr is the DMA address of the 8-byte per-bank status block.
func (d Device) BankStatusAddr() uint16 { return 0x0709 }

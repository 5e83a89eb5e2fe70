// Package pmbus is the command database consumed by the flashing engine:
// it maps the named commands of a PMBus device driver to their opcodes and
// declared operation kinds.  The flashing engine never hardcodes opcodes;
// different device families may assign different codes to the same named
// function, so everything is discovered through this interface.
package pmbus

import "fmt"

// Operation is the declared transfer kind of a command in one direction.
type Operation int

const (
	OpUnknown Operation = iota
	OpReadByte
	OpWriteByte
	OpReadWord
	OpWriteWord
	OpReadWord32
	OpWriteWord32
	OpReadBlock
	OpWriteBlock
)

func (o Operation) String() string {
	switch o {
	case OpReadByte:
		return "ReadByte"
	case OpWriteByte:
		return "WriteByte"
	case OpReadWord:
		return "ReadWord"
	case OpWriteWord:
		return "WriteWord"
	case OpReadWord32:
		return "ReadWord32"
	case OpWriteWord32:
		return "WriteWord32"
	case OpReadBlock:
		return "ReadBlock"
	case OpWriteBlock:
		return "WriteBlock"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Command is one entry of a device's command map.
type Command struct {
	Code  uint8
	Name  string
	Read  Operation
	Write Operation
}

// Device yields the command map of one PMBus device driver.
type Device interface {
	// Name is the driver identifier, e.g. "ISL68224".
	Name() string

	// Command looks up a command by its 8-bit code.
	Command(code uint8) (Command, bool)
}

// Standard command codes used directly by the flashing engine.  These are
// defined by the PMBus specification itself (or, for ApplySettings, by
// every Renesas DMP part) and are therefore safe to name here.
const (
	CodeICDeviceID    uint8 = 0xad
	CodeICDeviceRev   uint8 = 0xae
	CodeApplySettings uint8 = 0xe7
)

// AllCommands flattens a device's command map, keyed by command name.
func AllCommands(d Device) map[string]Command {
	all := make(map[string]Command)

	for code := 0; code <= 255; code++ {
		if cmd, ok := d.Command(uint8(code)); ok {
			all[cmd.Name] = cmd
		}
	}

	return all
}

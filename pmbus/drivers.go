package pmbus

import "strings"

// driver is a static command table implementing Device.
type driver struct {
	name     string
	commands map[uint8]Command
}

func (d *driver) Name() string { return d.name }

func (d *driver) Command(code uint8) (Command, bool) {
	cmd, ok := d.commands[code]
	return cmd, ok
}

// FromString looks up a driver by name, case-insensitively.
func FromString(name string) (Device, bool) {
	d, ok := drivers[strings.ToUpper(name)]
	return d, ok
}

// renesasCommands builds the command table shared by the supported DMP
// drivers.  The standard PMBus subset is identical across them; the
// vendor-specific DMA commands carry the declared kinds the flashing
// engine validates against.
func renesasCommands() map[uint8]Command {
	cmds := []Command{
		{Code: 0x00, Name: "PAGE", Read: OpReadByte, Write: OpWriteByte},
		{Code: 0x01, Name: "OPERATION", Read: OpReadByte, Write: OpWriteByte},
		{Code: 0x03, Name: "CLEAR_FAULTS", Write: OpWriteByte},
		{Code: 0x20, Name: "VOUT_MODE", Read: OpReadByte},
		{Code: 0x21, Name: "VOUT_COMMAND", Read: OpReadWord, Write: OpWriteWord},
		{Code: 0x78, Name: "STATUS_BYTE", Read: OpReadByte},
		{Code: 0x79, Name: "STATUS_WORD", Read: OpReadWord},
		{Code: 0x88, Name: "READ_VIN", Read: OpReadWord},
		{Code: 0x8b, Name: "READ_VOUT", Read: OpReadWord},
		{Code: 0x8c, Name: "READ_IOUT", Read: OpReadWord},
		{Code: 0x8d, Name: "READ_TEMPERATURE_1", Read: OpReadWord},
		{Code: CodeICDeviceID, Name: "IC_DEVICE_ID", Read: OpReadBlock},
		{Code: CodeICDeviceRev, Name: "IC_DEVICE_REV", Read: OpReadBlock},
		{Code: 0xc5, Name: "DMAFIX", Read: OpReadWord32, Write: OpWriteWord32},
		{Code: 0xc6, Name: "DMASEQ", Read: OpReadWord32, Write: OpWriteWord32},
		{Code: 0xc7, Name: "DMAADDR", Read: OpReadWord, Write: OpWriteWord},
		{Code: CodeApplySettings, Name: "APPLY_SETTINGS", Write: OpWriteWord},
	}

	m := make(map[uint8]Command, len(cmds))
	for _, c := range cmds {
		m[c.Code] = c
	}
	return m
}

var drivers = func() map[string]*driver {
	names := []string{
		"ISL68224",
		"ISL69224",
		"ISL69260",
		"RAA228218",
		"RAA229618",
	}

	m := make(map[string]*driver, len(names))
	for _, n := range names {
		m[n] = &driver{name: n, commands: renesasCommands()}
	}
	return m
}()

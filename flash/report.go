package flash

import (
	"github.com/hwdbg/dmpflash/batch"
	"github.com/hwdbg/dmpflash/dmp"
)

// Model resolves the catalog entry matching the selected driver name.
func (f *Flasher) Model() (dmp.Device, error) {
	return dmp.FromName(f.dev.Name())
}

// Slots reads the number of remaining NVM programming slots.
func (f *Flasher) Slots() (uint32, error) {
	d, err := f.Model()
	if err != nil {
		return 0, err
	}

	ops := f.baseOps()
	ops = f.dmaReadOps(ops, d.SlotAddr(), 4)
	ops = append(ops, batch.Done())

	results, err := f.exec.Run(ops, f.cfg.Timeout)
	if err != nil {
		return 0, err
	}

	return f.wordResult(results[1], "available slots")
}

// CRC reads the CRC of the configuration currently burned into OTP.
func (f *Flasher) CRC() (uint32, error) {
	d, err := f.Model()
	if err != nil {
		return 0, err
	}

	ops := f.baseOps()
	ops = f.dmaReadOps(ops, d.CRCAddr(), 4)
	ops = append(ops, batch.Done())

	results, err := f.exec.Run(ops, f.cfg.Timeout)
	if err != nil {
		return 0, err
	}

	return f.wordResult(results[1], "CRC")
}

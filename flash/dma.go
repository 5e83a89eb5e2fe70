package flash

import (
	"encoding/binary"
	"fmt"

	"github.com/hwdbg/dmpflash/batch"
)

// dmaReadOps appends the indirect read protocol: a DMAADDR word write to
// set the address, then a DMASEQ sequential read of nbytes.  Sequences
// from multiple calls may share one batch.
func (f *Flasher) dmaReadOps(ops []batch.Op, addr uint16, nbytes uint8) []batch.Op {
	ops = append(ops,
		batch.Push(f.dmaAddr),
		batch.Push(uint8(addr&0xff)),
		batch.Push(uint8(addr>>8)),
		batch.Push(2),
		batch.Call(f.i2cWrite),
		batch.DropN(4))

	return append(ops,
		batch.Push(f.dmaSeq),
		batch.Push(nbytes),
		batch.Call(f.i2cRead),
		batch.DropN(2))
}

// wordResult interprets one call result as a 32-bit little-endian value.
func (f *Flasher) wordResult(r batch.Result, what string) (uint32, error) {
	if r.Failed {
		return 0, fmt.Errorf("failed to read %s: %s", what, f.exec.Strerror(r.Code))
	}
	if len(r.Data) != 4 {
		return 0, fmt.Errorf("bad length on %s: % x", what, r.Data)
	}
	return binary.LittleEndian.Uint32(r.Data), nil
}

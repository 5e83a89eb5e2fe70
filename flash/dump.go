package flash

import (
	"fmt"
	"os"

	"github.com/hwdbg/dmpflash/batch"
	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

const (
	dumpBlockSize = 128
	dumpBlocks    = 8
	dumpMemSize   = 256 * 1024
)

var dumpCRCTable = crc.NewTable(crc.CRC32)

// Dump reads the whole device memory through sequential DMA reads into the
// first unused <base>.<n> file and returns its name.  The address is reset
// to zero once on the first lap; DMASEQ auto-increments from there.
func (f *Flasher) Dump(base string) (string, error) {
	laps := dumpMemSize / (dumpBlockSize * dumpBlocks)

	var filename string
	for i := 0; ; i++ {
		filename = fmt.Sprintf("%s.%d", base, i)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			break
		}
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.Wrap(err, "create dump")
	}
	defer file.Close()

	f.cfg.Logger.Infof("dumping device memory to %s", filename)

	h := crc.NewHashWithTable(dumpCRCTable)
	addr := 0

	for lap := 0; lap < laps; lap++ {
		ops := f.baseOps()

		if lap == 0 {
			ops = append(ops,
				batch.Push(f.dmaAddr),
				batch.Push(0),
				batch.Push(0),
				batch.Push(2),
				batch.Call(f.i2cWrite),
				batch.DropN(4))
		}

		ops = append(ops, batch.Push(f.dmaSeq), batch.Push(dumpBlockSize))
		for i := 0; i < dumpBlocks; i++ {
			ops = append(ops, batch.Call(f.i2cRead))
		}
		ops = append(ops, batch.Done())

		results, err := f.exec.Run(ops, f.cfg.Timeout)
		if err != nil {
			return "", err
		}

		if lap == 0 {
			if results[0].Failed {
				return "", fmt.Errorf("failed to set address: %s", f.exec.Strerror(results[0].Code))
			}
			results = results[1:]
		}

		for _, r := range results {
			if r.Failed {
				return "", fmt.Errorf("dump read failed: %s", f.exec.Strerror(r.Code))
			}
			if _, err := file.Write(r.Data); err != nil {
				return "", errors.Wrap(err, "write dump")
			}
			h.Update(r.Data)
			addr += len(r.Data)
			f.progress(addr, dumpMemSize)
		}
	}

	f.cfg.Logger.Infof("dumped %d bytes (CRC32 0x%08x)", addr, h.CRC32())
	return filename, nil
}

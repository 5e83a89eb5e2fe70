// Package flash drives the programming state machine for Renesas DMP
// controllers: identify, preflight the slot count and OTP CRC, stream the
// image records, then poll the programmer status until it settles.  All
// device access goes through a batch.Executor; register reads that have no
// direct PMBus command use the two-step DMAADDR/DMASEQ indirect protocol.
package flash

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hwdbg/dmpflash/batch"
	"github.com/hwdbg/dmpflash/dmp"
	"github.com/hwdbg/dmpflash/hexfile"
	"github.com/hwdbg/dmpflash/pmbus"
	"github.com/sirupsen/logrus"
)

// Progress receives a monotonically increasing written byte count against
// a known total.
type Progress func(written, total int)

type Config struct {
	Timeout        time.Duration
	VerifyTimeout  time.Duration
	VerifyInterval time.Duration
	WriteBatch     int
	Logger         logrus.FieldLogger
	Progress       Progress
}

func defaultConfig() Config {
	return Config{
		Timeout:        5 * time.Second,
		VerifyTimeout:  2 * time.Second,
		VerifyInterval: 100 * time.Millisecond,
		WriteBatch:     32,
	}
}

type Option func(*Config)

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithProgress(p Progress) Option {
	return func(c *Config) { c.Progress = p }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithVerifyWindow overrides the post-write polling deadline and the sleep
// between polls.
func WithVerifyWindow(deadline, interval time.Duration) Option {
	return func(c *Config) {
		c.VerifyTimeout = deadline
		c.VerifyInterval = interval
	}
}

// Flasher holds the resolved executor functions and DMA opcodes for one
// attached device.
type Flasher struct {
	exec     batch.Executor
	dev      pmbus.Device
	base     []batch.Op
	cfg      Config
	i2cRead  batch.Func
	i2cWrite batch.Func
	dmaAddr  uint8
	dmaSeq   uint8
}

// BaseOps builds the addressing prologue every batch starts with:
// controller, port, optional mux/segment, device address.
func BaseOps(controller, port uint8, mux, segment *uint8, address uint8) []batch.Op {
	ops := []batch.Op{batch.Push(controller), batch.Push(port)}

	if mux != nil && segment != nil {
		ops = append(ops, batch.Push(*mux), batch.Push(*segment))
	} else {
		ops = append(ops, batch.PushNone(), batch.PushNone())
	}

	return append(ops, batch.Push(address))
}

// New resolves the executor functions and the device's DMA command codes.
// The declared operation kinds are validated: a mismatch means the wrong
// device driver was selected.
func New(exec batch.Executor, dev pmbus.Device, base []batch.Op, opts ...Option) (*Flasher, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	f := &Flasher{
		exec: exec,
		dev:  dev,
		base: base,
		cfg:  cfg,
	}

	var err error
	if f.i2cRead, err = exec.Func("I2cRead", 7); err != nil {
		return nil, err
	}
	if f.i2cWrite, err = exec.Func("I2cWrite", 8); err != nil {
		return nil, err
	}

	all := pmbus.AllCommands(dev)

	dmaAddr, ok := all["DMAADDR"]
	if !ok {
		return nil, errors.New("no DMAADDR command found; is this a Renesas device?")
	}
	if dmaAddr.Write != pmbus.OpWriteWord {
		return nil, fmt.Errorf("DMAADDR mismatch: found %s", dmaAddr.Write)
	}
	f.dmaAddr = dmaAddr.Code

	dmaSeq, ok := all["DMASEQ"]
	if !ok {
		return nil, errors.New("no DMASEQ command found; is this a Renesas device?")
	}
	if dmaSeq.Read != pmbus.OpReadWord32 {
		return nil, fmt.Errorf("DMASEQ mismatch: found %s", dmaSeq.Read)
	}
	f.dmaSeq = dmaSeq.Code

	return f, nil
}

func (f *Flasher) baseOps() []batch.Op {
	return append([]batch.Op(nil), f.base...)
}

func (f *Flasher) progress(written, total int) {
	if f.cfg.Progress != nil {
		f.cfg.Progress(written, total)
	}
}

// FlashOptions are the per-invocation modifiers of Flash.
type FlashOptions struct {
	// Check compares the image CRC against the device and never writes.
	Check bool

	// DryRun transmits the image but skips the record that burns the OTP.
	DryRun bool

	// Force flashes even when the image CRC already matches the device.
	Force bool
}

// DeviceMismatchError reports an attached device that identifies as a
// different known model than the image targets.
type DeviceMismatchError struct {
	Expected dmp.Device
	Found    dmp.Device
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch: expected %s, found %s", e.Expected, e.Found)
}

// CRCMismatchError reports a check-only run against a device whose OTP CRC
// differs from the image.
type CRCMismatchError struct {
	Image  uint32
	Device uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("image CRC (0x%08x) does not match OTP CRC (0x%08x)", e.Image, e.Device)
}

// Flash runs the whole programming sequence against the attached device.
// Every guardrail aborts before the first write: once records are going
// out there is no rollback.
func (f *Flasher) Flash(img *hexfile.Image, opts FlashOptions) error {
	log := f.cfg.Logger

	/* Identify: direct block reads of the identity commands plus indirect
	 * reads of the slot count and OTP CRC, all in one round trip. */
	ops := f.baseOps()
	ops = append(ops,
		batch.Push(pmbus.CodeICDeviceID), batch.PushNone(),
		batch.Call(f.i2cRead), batch.DropN(2))
	ops = append(ops,
		batch.Push(pmbus.CodeICDeviceRev), batch.PushNone(),
		batch.Call(f.i2cRead), batch.DropN(2))
	ops = f.dmaReadOps(ops, img.Device.SlotAddr(), 4)
	ops = f.dmaReadOps(ops, img.Device.CRCAddr(), 4)
	ops = append(ops, batch.Done())

	results, err := f.exec.Run(ops, f.cfg.Timeout)
	if err != nil {
		return err
	}

	id := results[0]
	if id.Failed {
		return fmt.Errorf("failed to read IC_DEVICE_ID: %s", f.exec.Strerror(id.Code))
	}
	if len(id.Data) != 4 {
		return fmt.Errorf("bad length on IC_DEVICE_ID: % x", id.Data)
	}

	/* The IC_DEVICE_REV is permitted to differ; the ID is not. */
	if id.Data[1] != img.DeviceID[1] {
		if found, err := dmp.FromID(id.Data[1]); err == nil {
			return &DeviceMismatchError{Expected: img.Device, Found: found}
		}
	}
	if !bytes.Equal(id.Data, img.DeviceID[:]) {
		return fmt.Errorf("IC_DEVICE_ID mismatch: expected % x found % x", img.DeviceID, id.Data)
	}

	nslots, err := f.wordResult(results[3], "available slots")
	if err != nil {
		return err
	}
	log.Infof("%d NVM slots remain", nslots)

	if nslots > 28 {
		return errors.New("number of NVM slots is impossibly high; aborting")
	}
	if nslots < 10 {
		return errors.New("number of available NVM slots is scarily low; aborting")
	}

	crc, err := f.wordResult(results[5], "CRC")
	if err != nil {
		return err
	}

	if crc == img.CRC {
		msg := fmt.Sprintf("image CRC (0x%08x) matches OTP CRC", crc)

		if opts.Check {
			log.Info(msg)
			return nil
		}
		if !opts.Force {
			return fmt.Errorf("%s; use --force to force", msg)
		}
		log.Infof("%s; flashing anyway", msg)
	} else if opts.Check {
		return &CRCMismatchError{Image: img.CRC, Device: crc}
	}

	if err := f.write(img, opts); err != nil {
		return err
	}

	return f.verify(img)
}

func (f *Flasher) write(img *hexfile.Image, opts FlashOptions) error {
	log := f.cfg.Logger

	/* An empty record would wrap the zero-based count byte to 0xff and
	 * turn into a 255-byte garbage write on the wire. */
	for ndx, payload := range img.Data {
		if len(payload) == 0 {
			return fmt.Errorf("empty record %d in image", ndx)
		}
	}
	if len(img.Data) == 0 {
		return errors.New("image has no data records")
	}

	max, start := len(img.Data), 0
	if opts.DryRun {
		/* Stop short of the final record, which burns the OTP -- but also
		 * start after the first record, which must run immediately before
		 * the others for the part to stay programmable afterwards. */
		max, start = len(img.Data)-1, 1
	}

	/* Count only the transmitted range so the progress sink reaches its
	 * total on a dry run too. */
	nbytes := 0
	for _, payload := range img.Data[start:max] {
		nbytes += len(payload)
	}

	log.Infof("flashing %d bytes", nbytes)
	started := time.Now()

	nwritten := 0

	for {
		ops := f.baseOps()
		batchStart := start

		for i := start; i < start+f.cfg.WriteBatch && i < max; i++ {
			payload := img.Data[i]
			n := uint8(len(payload))

			for _, b := range payload {
				ops = append(ops, batch.Push(b))
			}

			/* The device write count is zero-based. */
			ops = append(ops,
				batch.Push(n-1),
				batch.Call(f.i2cWrite),
				batch.DropN(n+1))
			nwritten += len(payload)
		}
		ops = append(ops, batch.Done())

		results, err := f.exec.Run(ops, f.cfg.Timeout)
		if err != nil {
			return err
		}

		f.progress(nwritten, nbytes)

		for ndx, r := range results {
			if r.Failed {
				return fmt.Errorf("failed to write % x: %s",
					img.Data[batchStart+ndx], f.exec.Strerror(r.Code))
			}
		}

		start += f.cfg.WriteBatch
		if start >= max {
			break
		}
	}

	log.Infof("flashed %d bytes in %s", nbytes, time.Since(started).Round(time.Millisecond))
	return nil
}

func (f *Flasher) verify(img *hexfile.Image) error {
	log := f.cfg.Logger
	waiting := time.Now()

	for {
		ops := f.baseOps()
		ops = f.dmaReadOps(ops, img.Device.ProgrammerStatusAddr(), 2)
		ops = f.dmaReadOps(ops, img.Device.BankStatusAddr(), 8)
		ops = append(ops, batch.Done())

		results, err := f.exec.Run(ops, f.cfg.Timeout)
		if err != nil {
			return err
		}

		sres := results[1]
		if sres.Failed {
			return fmt.Errorf("programmer status failed: %s", f.exec.Strerror(sres.Code))
		}
		if len(sres.Data) != 2 {
			return fmt.Errorf("bad length on status: % x", sres.Data)
		}
		status := uint16(sres.Data[0]) | uint16(sres.Data[1])<<8

		bres := results[3]
		if bres.Failed {
			return fmt.Errorf("bank status failed: %s", f.exec.Strerror(bres.Code))
		}

		banks, err := img.Device.BankStatuses(bres.Data)
		if err != nil {
			return err
		}

		for ndx, bank := range banks {
			if !bank.Known() {
				return fmt.Errorf("bank status % x: bank %d invalid", bres.Data, ndx)
			}
			if bank != dmp.BankUnaffected {
				log.Infof("bank %d: %s", ndx, bank)
			}
		}

		if err := img.Device.CheckProgrammerStatus(status); err != nil {
			/* Keep polling until the deadline; the last classified failure
			 * is the operation's result. */
			if time.Since(waiting) > f.cfg.VerifyTimeout {
				return err
			}
			time.Sleep(f.cfg.VerifyInterval)
			continue
		}

		break
	}

	log.Infof("flashed successfully after %d ms; power cycle to load new configuration",
		time.Since(waiting).Milliseconds())
	return nil
}

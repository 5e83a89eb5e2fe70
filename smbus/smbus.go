// Package smbus implements batch.Executor on top of the Linux i2c-dev
// interface.  It interprets the batch op stream with a small argument
// stack: the base of the stack selects the bus and device address, and
// each I2cRead/I2cWrite call consumes the arguments above it.
package smbus

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/hwdbg/dmpflash/batch"
	"golang.org/x/sys/unix"
)

const (
	I2C_TIMEOUT = 0x0702
	I2C_RDWR    = 0x0707
	I2C_SMBUS   = 0x0720

	I2C_M_RD = 0x0001

	I2C_SMBUS_READ       = 1
	I2C_SMBUS_BLOCK_DATA = 5

	smbusBlockMax = 32
)

type i2cMsg struct {
	Addr  uint16
	Flags uint16
	Len   uint16
	_     uint16
	Buf   uintptr
}

type rdwrIoctlData struct {
	Msgs  uintptr
	NMsgs uint32
}

type smbusIoctlData struct {
	ReadWrite uint8
	Command   uint8
	Size      uint32
	Data      uintptr
}

// Function identifiers exposed through batch.Executor.Func.
var (
	funcI2cRead  = batch.Func{ID: 1, Name: "I2cRead", NArgs: 7}
	funcI2cWrite = batch.Func{ID: 2, Name: "I2cWrite", NArgs: 8}
)

type Transport struct {
	path string
	fd   int
}

// New opens /dev/i2c-<bus>.
func New(bus int) (*Transport, error) {
	t := &Transport{
		path: fmt.Sprintf("/dev/i2c-%d", bus),
		fd:   -1,
	}

	var err error
	t.fd, err = unix.Open(t.path, unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}

	return t, nil
}

func (t *Transport) Close() error {
	if t.fd < 0 {
		return nil
	}

	fd := t.fd
	t.fd = -1

	return unix.Close(fd)
}

func (t *Transport) Func(name string, nargs int) (batch.Func, error) {
	for _, f := range []batch.Func{funcI2cRead, funcI2cWrite} {
		if f.Name == name {
			if f.NArgs != nargs {
				return batch.Func{}, fmt.Errorf("%s takes %d args, not %d", name, f.NArgs, nargs)
			}
			return f, nil
		}
	}
	return batch.Func{}, fmt.Errorf("%w: %s", batch.ErrUnknownFunc, name)
}

func (t *Transport) Strerror(code uint32) string {
	return unix.Errno(code).Error()
}

type stackVal struct {
	val  uint8
	none bool
}

// Run interprets the op stream.  Device-level failures (an errno from a
// transfer) are returned per call site; anything structurally wrong with
// the stream aborts the whole batch.
func (t *Transport) Run(ops []batch.Op, timeout time.Duration) ([]batch.Result, error) {
	if timeout > 0 {
		/* i2c-dev timeouts are in units of 10 ms. */
		tens := uintptr(timeout / (10 * time.Millisecond))
		if tens == 0 {
			tens = 1
		}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), I2C_TIMEOUT, tens)
		if errno != 0 {
			return nil, fmt.Errorf("set timeout on %s: %w", t.path, errno)
		}
	}

	var stack []stackVal
	var results []batch.Result

	for _, op := range ops {
		switch op.Kind {
		case batch.OpPush:
			stack = append(stack, stackVal{val: op.Arg})

		case batch.OpPushNone:
			stack = append(stack, stackVal{none: true})

		case batch.OpDropN:
			n := int(op.Arg)
			if n > len(stack) {
				return nil, errors.New("drop beyond stack bottom")
			}
			stack = stack[:len(stack)-n]

		case batch.OpDone:
			return results, nil

		case batch.OpCall:
			r, err := t.call(op.Arg, stack)
			if err != nil {
				return nil, err
			}
			results = append(results, r)

		default:
			return nil, fmt.Errorf("bad op kind %d", op.Kind)
		}
	}

	return results, nil
}

// call dispatches one Call op against the current stack.  The bottom five
// entries are the addressing base pushed once per batch: controller, port,
// mux, segment, device address.  Only the address is meaningful on
// i2c-dev; a mux selection cannot be honored here.
func (t *Transport) call(id uint8, stack []stackVal) (batch.Result, error) {
	if len(stack) < 7 {
		return batch.Result{}, errors.New("call with short stack")
	}
	if !stack[2].none || !stack[3].none {
		return batch.Result{}, errors.New("i2c-dev transport cannot select a mux segment")
	}
	if stack[4].none {
		return batch.Result{}, errors.New("missing device address")
	}
	addr := stack[4].val

	switch id {
	case funcI2cRead.ID:
		cmd := stack[len(stack)-2]
		nbytes := stack[len(stack)-1]
		if cmd.none {
			return batch.Result{}, errors.New("missing command code")
		}
		if nbytes.none {
			return t.blockRead(addr, cmd.val)
		}
		return t.rawRead(addr, cmd.val, int(nbytes.val))

	case funcI2cWrite.ID:
		count := stack[len(stack)-1]
		if count.none {
			return batch.Result{}, errors.New("missing write count")
		}
		n := int(count.val)
		if len(stack)-2-n < 5 {
			return batch.Result{}, errors.New("write count exceeds stack")
		}
		cmd := stack[len(stack)-2-n]
		data := make([]byte, 0, n)
		for _, v := range stack[len(stack)-1-n : len(stack)-1] {
			if v.none {
				return batch.Result{}, errors.New("missing write datum")
			}
			data = append(data, v.val)
		}
		return t.rawWrite(addr, cmd.val, data)
	}

	return batch.Result{}, fmt.Errorf("%w: id %d", batch.ErrUnknownFunc, id)
}

func (t *Transport) rdwr(msgs []i2cMsg) error {
	req := rdwrIoctlData{
		Msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		NMsgs: uint32(len(msgs)),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), I2C_RDWR, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (t *Transport) rawWrite(addr uint8, cmd uint8, data []byte) (batch.Result, error) {
	buf := append([]byte{cmd}, data...)

	msg := i2cMsg{
		Addr: uint16(addr),
		Len:  uint16(len(buf)),
		Buf:  uintptr(unsafe.Pointer(&buf[0])),
	}

	if err := t.rdwr([]i2cMsg{msg}); err != nil {
		return errnoResult(err)
	}
	return batch.Ok(nil), nil
}

func (t *Transport) rawRead(addr uint8, cmd uint8, nbytes int) (batch.Result, error) {
	out := make([]byte, nbytes)
	cmdBuf := [1]byte{cmd}

	msgs := []i2cMsg{
		{
			Addr: uint16(addr),
			Len:  1,
			Buf:  uintptr(unsafe.Pointer(&cmdBuf[0])),
		},
		{
			Addr:  uint16(addr),
			Flags: I2C_M_RD,
			Len:   uint16(nbytes),
			Buf:   uintptr(unsafe.Pointer(&out[0])),
		},
	}

	if err := t.rdwr(msgs); err != nil {
		return errnoResult(err)
	}
	return batch.Ok(out), nil
}

// blockRead performs an SMBus block read, used for commands whose length
// the device supplies (IC_DEVICE_ID, IC_DEVICE_REV).
func (t *Transport) blockRead(addr uint8, cmd uint8) (batch.Result, error) {
	if err := t.setSlave(addr); err != nil {
		return errnoResult(err)
	}

	/* Byte 0 of the buffer receives the block length. */
	var data [smbusBlockMax + 2]byte

	req := smbusIoctlData{
		ReadWrite: I2C_SMBUS_READ,
		Command:   cmd,
		Size:      I2C_SMBUS_BLOCK_DATA,
		Data:      uintptr(unsafe.Pointer(&data[0])),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), I2C_SMBUS, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return errnoResult(errno)
	}

	count := int(data[0])
	if count > smbusBlockMax {
		count = smbusBlockMax
	}

	out := make([]byte, count)
	copy(out, data[1:1+count])
	return batch.Ok(out), nil
}

func (t *Transport) setSlave(addr uint8) error {
	const I2C_SLAVE = 0x0703

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), I2C_SLAVE, uintptr(addr))
	if errno != 0 {
		return errno
	}
	return nil
}

// errnoResult folds a transfer errno into a per-call failure; anything
// that is not an errno is a transport defect and aborts the batch.
func errnoResult(err error) (batch.Result, error) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return batch.Fail(uint32(errno)), nil
	}
	return batch.Result{}, err
}

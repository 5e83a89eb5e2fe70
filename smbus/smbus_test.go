package smbus

import (
	"testing"
	"time"

	"github.com/hwdbg/dmpflash/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// closedTransport never reaches a device: every transfer fails with EBADF,
// which exercises the interpreter and the per-call error folding without
// hardware.
func closedTransport() *Transport {
	return &Transport{path: "/dev/i2c-0", fd: -1}
}

func baseStack() []batch.Op {
	return []batch.Op{
		batch.Push(1), batch.Push(0),
		batch.PushNone(), batch.PushNone(),
		batch.Push(0x60),
	}
}

func TestFuncResolution(t *testing.T) {
	tr := closedTransport()

	f, err := tr.Func("I2cRead", 7)
	require.NoError(t, err)
	assert.Equal(t, funcI2cRead, f)

	f, err = tr.Func("I2cWrite", 8)
	require.NoError(t, err)
	assert.Equal(t, funcI2cWrite, f)

	_, err = tr.Func("I2cRead", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 7 args, not 3")

	_, err = tr.Func("SpiTransfer", 4)
	require.ErrorIs(t, err, batch.ErrUnknownFunc)
}

func TestRunStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		ops  []batch.Op
		want string
	}{
		{
			"drop beyond stack bottom",
			[]batch.Op{batch.DropN(1)},
			"drop beyond stack bottom",
		},
		{
			"short stack",
			[]batch.Op{batch.Push(1), batch.Call(funcI2cRead)},
			"call with short stack",
		},
		{
			"mux selected",
			[]batch.Op{
				batch.Push(1), batch.Push(0),
				batch.Push(3), batch.PushNone(),
				batch.Push(0x60),
				batch.Push(0xc6), batch.Push(4),
				batch.Call(funcI2cRead),
			},
			"cannot select a mux segment",
		},
		{
			"missing address",
			[]batch.Op{
				batch.Push(1), batch.Push(0),
				batch.PushNone(), batch.PushNone(),
				batch.PushNone(),
				batch.Push(0xc6), batch.Push(4),
				batch.Call(funcI2cRead),
			},
			"missing device address",
		},
		{
			"missing command code",
			append(baseStack(),
				batch.PushNone(), batch.Push(4),
				batch.Call(funcI2cRead)),
			"missing command code",
		},
		{
			"missing write count",
			append(baseStack(),
				batch.Push(0xc7), batch.PushNone(),
				batch.Call(funcI2cWrite)),
			"missing write count",
		},
		{
			"count exceeds stack",
			append(baseStack(),
				batch.Push(0xc7), batch.Push(200),
				batch.Call(funcI2cWrite)),
			"write count exceeds stack",
		},
		{
			"missing write datum",
			append(baseStack(),
				batch.Push(0xc7), batch.PushNone(), batch.Push(1),
				batch.Call(funcI2cWrite)),
			"missing write datum",
		},
		{
			"bad op kind",
			[]batch.Op{{Kind: batch.OpKind(99)}},
			"bad op kind 99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := closedTransport().Run(tt.ops, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunUnknownCallID(t *testing.T) {
	ops := append(baseStack(),
		batch.Push(0xc6), batch.Push(4),
		batch.Op{Kind: batch.OpCall, Arg: 9})

	_, err := closedTransport().Run(ops, 0)
	require.ErrorIs(t, err, batch.ErrUnknownFunc)
}

func TestRunDoneStopsInterpretation(t *testing.T) {
	ops := []batch.Op{batch.Done(), {Kind: batch.OpKind(99)}}

	results, err := closedTransport().Run(ops, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestRunTransferFailures drives complete op streams down to the transfer
// layer; the closed fd turns each one into a per-call failure rather than
// a batch abort, proving the stack addressing reached the right operation.
func TestRunTransferFailures(t *testing.T) {
	tests := []struct {
		name string
		ops  []batch.Op
	}{
		{
			"raw write",
			append(baseStack(),
				batch.Push(0xc7), batch.Push(0xc0), batch.Push(0x00),
				batch.Push(2),
				batch.Call(funcI2cWrite), batch.DropN(4),
				batch.Done()),
		},
		{
			"raw read",
			append(baseStack(),
				batch.Push(0xc6), batch.Push(4),
				batch.Call(funcI2cRead), batch.DropN(2),
				batch.Done()),
		},
		{
			"block read",
			append(baseStack(),
				batch.Push(0xad), batch.PushNone(),
				batch.Call(funcI2cRead), batch.DropN(2),
				batch.Done()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := closedTransport()

			results, err := tr.Run(tt.ops, 0)
			require.NoError(t, err)
			require.Len(t, results, 1)

			assert.True(t, results[0].Failed)
			assert.Equal(t, uint32(unix.EBADF), results[0].Code)
			assert.Contains(t, tr.Strerror(results[0].Code), "bad file descriptor")
		})
	}
}

func TestRunTimeoutError(t *testing.T) {
	_, err := closedTransport().Run(baseStack(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set timeout on /dev/i2c-0")
	assert.ErrorIs(t, err, unix.EBADF)
}

package dmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckProgrammerStatus(t *testing.T) {
	d, err := FromName("ISL68224")
	require.NoError(t, err)

	tests := []struct {
		status uint16
		want   error
	}{
		{0x0001, nil},
		{0x0011, nil}, // success bit wins over failure bits
		{0x0010, ErrCRCMismatchRAM},
		{0x0050, ErrCRCMismatchRAM}, // RAM bit checked before OTP
		{0x0040, ErrCRCMismatchOTP},
		{0x0100, ErrConfigsUnavailable},
	}

	for _, tt := range tests {
		assert.Equalf(t, tt.want, d.CheckProgrammerStatus(tt.status), "status 0x%04x", tt.status)
	}

	err = d.CheckProgrammerStatus(0x0000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown failure (status 0x0000)")

	err = d.CheckProgrammerStatus(0x0200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown failure (status 0x0200)")
}

func TestBankStatusesDecode(t *testing.T) {
	d, err := FromName("RAA228218")
	require.NoError(t, err)

	known := map[BankStatus]bool{
		BankUnaffected:     true,
		BankWritten:        true,
		BankReserved:       true,
		BankCRCMismatchRAM: true,
		BankCRCMismatchOTP: true,
	}

	for v := 0; v <= 255; v++ {
		status := []byte{byte(v), 0, 0, 0, 0, 0, 0, 0}
		banks, err := d.BankStatuses(status)
		require.NoError(t, err)
		require.Len(t, banks, 16)

		lo := BankStatus(byte(v) & 0x0f)
		hi := BankStatus((byte(v) >> 4) & 0x0f)
		assert.Equal(t, lo, banks[0])
		assert.Equal(t, hi, banks[1])
		assert.Equal(t, known[lo], banks[0].Known())
		assert.Equal(t, known[hi], banks[1].Known())
	}
}

func TestBankStatusesAllZero(t *testing.T) {
	d, err := FromName("ISL69260")
	require.NoError(t, err)

	banks, err := d.BankStatuses(make([]byte, 8))
	require.NoError(t, err)
	require.Len(t, banks, 16)
	for i, b := range banks {
		assert.Equalf(t, BankUnaffected, b, "bank %d", i)
		assert.True(t, b.Known())
	}
}

func TestBankStatusesShort(t *testing.T) {
	d, err := FromName("ISL69260")
	require.NoError(t, err)

	for _, n := range []int{0, 1, 7, 9, 16} {
		_, err := d.BankStatuses(make([]byte, n))
		assert.ErrorIsf(t, err, ErrShortStatus, "length %d", n)
	}
}

package dmp

import (
	"errors"
	"fmt"
)

var (
	ErrCRCMismatchRAM     = errors.New("flashing failed: CRC mismatch within RAM data")
	ErrCRCMismatchOTP     = errors.New("flashing failed: CRC mismatch within OTP data")
	ErrConfigsUnavailable = errors.New("flashing failed: configurations not available")
	ErrShortStatus        = errors.New("short bank status")
)

// CheckProgrammerStatus classifies the 16-bit programmer status word.  The
// vendor documents three failure bits; everything else stays a single
// unknown-failure outcome.
func (d Device) CheckProgrammerStatus(status uint16) error {
	switch {
	case status&0x0001 != 0:
		return nil
	case status&0x0010 != 0:
		return ErrCRCMismatchRAM
	case status&0x0040 != 0:
		return ErrCRCMismatchOTP
	case status&0x0100 != 0:
		return ErrConfigsUnavailable
	}
	return fmt.Errorf("flashing failed: unknown failure (status 0x%04x)", status)
}

// BankStatus is the 4-bit outcome one OTP bank reports after a programming
// attempt.
type BankStatus uint8

const (
	BankUnaffected     BankStatus = 0b0000
	BankWritten        BankStatus = 0b0001
	BankReserved       BankStatus = 0b0010
	BankCRCMismatchRAM BankStatus = 0b0100
	BankCRCMismatchOTP BankStatus = 0b1000
)

// Known reports whether the nibble is one of the defined code points.  An
// unknown value is a decode miss the caller must surface, not drop.
func (s BankStatus) Known() bool {
	switch s {
	case BankUnaffected, BankWritten, BankReserved, BankCRCMismatchRAM, BankCRCMismatchOTP:
		return true
	}
	return false
}

func (s BankStatus) String() string {
	switch s {
	case BankUnaffected:
		return "bank unaffected"
	case BankWritten:
		return "bank written successfully"
	case BankReserved:
		return "<reserved>"
	case BankCRCMismatchRAM:
		return "CRC mismatch with RAM"
	case BankCRCMismatchOTP:
		return "CRC mismatch with OTP"
	}
	return fmt.Sprintf("<invalid 0x%x>", uint8(s))
}

// BankStatuses decodes the 8-byte bank status block into 16 entries, low
// nibble first within each byte.
func (d Device) BankStatuses(status []byte) ([]BankStatus, error) {
	if len(status) != 8 {
		return nil, ErrShortStatus
	}

	out := make([]BankStatus, 0, 16)
	for _, b := range status {
		out = append(out, BankStatus(b&0x0f), BankStatus((b>>4)&0x0f))
	}

	return out, nil
}

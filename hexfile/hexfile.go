// Package hexfile decodes the Renesas DMP configuration file format: ASCII
// lines of 2-hex-digit byte pairs, each line one record of the form
// [kind][length][address<<1][payload...][checksum].  A file is either
// accepted wholesale or rejected; there is no partial image.
package hexfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hwdbg/dmpflash/dmp"
	"github.com/pkg/errors"
)

// RecordKind discriminates the two record types of the file format.
type RecordKind uint8

const (
	Data   RecordKind = 0x00
	Header RecordKind = 0x49
)

// Record is one decoded line.
type Record struct {
	Kind    RecordKind
	Address uint8
	Payload []byte
}

// Image is the parsed firmware file, ready for the flash orchestrator.
// DeviceID and DeviceRev are in the device's native little-endian order.
type Image struct {
	Device    dmp.Device
	DeviceID  [4]byte
	DeviceRev [4]byte
	CRC       uint32
	Data      [][]byte
}

// AddressMismatchError reports a record addressed to a different device
// than the one this flash operation targets.  This is a safety check
// against flashing the wrong device, not a limitation to work around.
type AddressMismatchError struct {
	Image  uint8
	Target uint8
}

func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("image specifies address to be 0x%x; can't flash 0x%x", e.Image, e.Target)
}

// Parse reads and validates the file at path for a flash operation
// targeting the given 7-bit device address.
func Parse(path string, address uint8) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()

	return parse(f, address)
}

// parseLine decodes one non-blank line into a Record.  lineno is 1-based,
// for diagnostics.
func parseLine(line string, lineno int, address uint8) (*Record, error) {
	vals := make([]byte, 0, len(line)/2)

	for i := 0; i < len(line); i += 2 {
		col := i + 1

		if i+1 >= len(line) {
			return nil, fmt.Errorf("short hex input on line %d in column %d", lineno, col)
		}

		v, err := strconv.ParseUint(line[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad hex value on line %d in column %d: %s", lineno, col, line[i:i+2])
		}
		vals = append(vals, byte(v))
	}

	/* At least a record kind, a length, an address and a checksum. */
	if len(vals) < 4 {
		return nil, fmt.Errorf("short hex input on line %d", lineno)
	}

	kind := RecordKind(vals[0])
	if kind != Data && kind != Header {
		return nil, fmt.Errorf("bad record kind 0x%x on line %d", vals[0], lineno)
	}

	/* The declared length covers the address, at least one payload byte
	 * and the checksum. */
	reclen := int(vals[1])
	if reclen != len(vals)-2 || reclen < 3 {
		return nil, fmt.Errorf("bad record length %d on line %d", vals[1], lineno)
	}

	if vals[2]>>1 != address {
		return nil, &AddressMismatchError{Image: vals[2] >> 1, Target: address}
	}

	return &Record{
		Kind:    kind,
		Address: vals[2] >> 1,
		Payload: vals[3 : reclen+1],
	}, nil
}

// flipWord reverses a 4-byte field.  IC_DEVICE_ID and IC_DEVICE_REV are
// big-endian in the file even though they are little-endian off the
// device.
func flipWord(val []byte, what string) ([4]byte, error) {
	if len(val) != 4 {
		return [4]byte{}, fmt.Errorf("bad %s length (found %d bytes)", what, len(val))
	}
	return [4]byte{val[3], val[2], val[1], val[0]}, nil
}

func parse(r io.Reader, address uint8) (*Image, error) {
	var headers, data [][]byte

	scanner := bufio.NewScanner(r)
	lineno := 0

	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseLine(line, lineno, address)
		if err != nil {
			return nil, err
		}

		switch rec.Kind {
		case Header:
			headers = append(headers, rec.Payload)
		default:
			data = append(data, rec.Payload)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read image")
	}

	/* IC_DEVICE_ID and IC_DEVICE_REV must lead the headers, in that
	 * order. */
	if len(headers) < 2 {
		return nil, fmt.Errorf("insufficient headers found")
	}

	id, err := flipWord(headers[0][1:], "IC_DEVICE_ID")
	if err != nil {
		return nil, err
	}

	device, err := dmp.FromID(id[1])
	if err != nil {
		return nil, err
	}

	if found := len(headers) + len(data); found != device.Lines() {
		return nil, fmt.Errorf("expected %d total lines, found %d", device.Lines(), found)
	}

	rev, err := flipWord(headers[1][1:], "IC_DEVICE_REV")
	if err != nil {
		return nil, err
	}

	/* The CRC payload sits at a fixed line of the file, per the
	 * programming guide. */
	crcLine := device.CRCLine()
	ndx := crcLine - len(headers) - 2
	if ndx < 0 || ndx >= len(data) || len(data[ndx]) < 1 {
		return nil, fmt.Errorf("missing CRC record on line %d", crcLine)
	}

	crc := data[ndx][1:]
	if len(crc) != 4 {
		return nil, fmt.Errorf("bad CRC length on line %d: %d", crcLine, len(crc))
	}

	return &Image{
		Device:    device,
		DeviceID:  id,
		DeviceRev: rev,
		CRC:       binary.LittleEndian.Uint32(crc),
		Data:      data,
	}, nil
}

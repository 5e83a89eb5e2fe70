// Package gen turns Power Navigator configuration dumps into the PMBus
// write sequence they describe, and renders that sequence as Go source
// for embedding in firmware or tooling.
package gen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hwdbg/dmpflash/pmbus"
	"github.com/pkg/errors"
)

// Packet is one write from an ingested configuration: either a direct
// PMBus command write or an indirect write to a DMA address.
type Packet struct {
	DMA     bool
	Addr    uint16
	Code    uint8
	Name    string
	Payload []byte
}

func parsePayload(field string, lineno int) ([]byte, error) {
	if !strings.HasPrefix(field, "0x") {
		return nil, fmt.Errorf("bad payload prefix on line %d: %s", lineno, field)
	}

	var bits int
	switch len(field) {
	case 4:
		bits = 8
	case 6:
		bits = 16
	case 10:
		bits = 32
	default:
		return nil, fmt.Errorf("badly sized payload on line %d: %s", lineno, field)
	}

	val, err := strconv.ParseUint(field[2:], 16, bits)
	if err != nil {
		return nil, fmt.Errorf("bad payload on line %d: %s", lineno, field)
	}

	payload := make([]byte, bits/8)
	for i := range payload {
		payload[i] = byte(val >> (8 * i))
	}
	return payload, nil
}

// Ingest parses a Power Navigator text dump into its packet sequence,
// with a trailing APPLY_SETTINGS write appended so the configuration
// takes effect once replayed.
func Ingest(path string, dev pmbus.Device) ([]Packet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open ingest file")
	}
	defer file.Close()

	return ingest(file, dev)
}

func ingest(r io.Reader, dev pmbus.Device) ([]Packet, error) {
	var packets []Packet

	scanner := bufio.NewScanner(r)
	lineno := 0

	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 4 || fields[2] != "#" {
			return nil, fmt.Errorf("malformed line %d", lineno)
		}

		payload, err := parsePayload(fields[1], lineno)
		if err != nil {
			return nil, err
		}

		/* A dual-byte address is an indirect DMA write; a single-byte
		 * address is a PMBus command code.  The width of the field is
		 * the only way to tell them apart. */
		addr := fields[3]
		if !strings.HasPrefix(addr, "0x") {
			return nil, fmt.Errorf("bad address on line %d: %s", lineno, addr)
		}

		if len(addr) > 4 {
			val, err := strconv.ParseUint(addr[2:], 16, 16)
			if err != nil {
				return nil, fmt.Errorf("bad DMA address on line %d: %s", lineno, addr)
			}
			packets = append(packets, Packet{
				DMA:     true,
				Addr:    uint16(val),
				Payload: payload,
			})
			continue
		}

		val, err := strconv.ParseUint(addr[2:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad PMBus address on line %d: %s", lineno, addr)
		}

		cmd, ok := dev.Command(uint8(val))
		if !ok {
			return nil, fmt.Errorf("unknown PMBus command 0x%02x on line %d", val, lineno)
		}
		packets = append(packets, Packet{
			Code:    cmd.Code,
			Name:    cmd.Name,
			Payload: payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read ingest file")
	}

	apply, ok := dev.Command(pmbus.CodeApplySettings)
	if !ok {
		return nil, errors.New("device has no APPLY_SETTINGS command")
	}
	packets = append(packets, Packet{
		Code:    apply.Code,
		Name:    apply.Name,
		Payload: []byte{1, 0},
	})

	return packets, nil
}

package gen

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hwdbg/dmpflash/pmbus"
	"github.com/pkg/errors"
)

// Generate renders the packet sequence as a Go source file declaring the
// payload table and an iterator over it, in the named package.  Each
// table entry is one PMBus write, command code first; DMA writes become
// a DMAADDR entry followed by a DMAFIX entry.
func Generate(w io.Writer, dev pmbus.Device, pkg string, packets []Packet) error {
	all := pmbus.AllCommands(dev)

	dmaAddr, ok := all["DMAADDR"]
	if !ok {
		return errors.New("no DMAADDR command found; is this a Renesas device?")
	}
	if dmaAddr.Write != pmbus.OpWriteWord {
		return fmt.Errorf("DMAADDR mismatch: found %s", dmaAddr.Write)
	}

	dmaFix, ok := all["DMAFIX"]
	if !ok {
		return errors.New("no DMAFIX command found; is this a Renesas device?")
	}
	if dmaFix.Write != pmbus.OpWriteWord32 {
		return fmt.Errorf("DMAFIX mismatch: found %s", dmaFix.Write)
	}

	name := dev.Name()
	lower := strings.ToLower(name)
	buf := &bytes.Buffer{}

	fmt.Fprintf(buf, "// Code generated by dmpflash ingest. DO NOT EDIT.\n\n")
	fmt.Fprintf(buf, "package %s\n\n", pkg)

	fmt.Fprintf(buf, "// %sPayload invokes fn for every configuration chunk of a Renesas\n", name)
	fmt.Fprintf(buf, "// %s digital multiphase PWM controller.  Each chunk is one PMBus\n", name)
	fmt.Fprintf(buf, "// write, command code first.\n")
	fmt.Fprintf(buf, "func %sPayload(fn func([]byte) error) error {\n", name)
	fmt.Fprintf(buf, "\tfor _, chunk := range %sPayload {\n", lower)
	fmt.Fprintf(buf, "\t\tif err := fn(chunk); err != nil {\n")
	fmt.Fprintf(buf, "\t\t\treturn err\n")
	fmt.Fprintf(buf, "\t\t}\n")
	fmt.Fprintf(buf, "\t}\n")
	fmt.Fprintf(buf, "\treturn nil\n")
	fmt.Fprintf(buf, "}\n\n")

	fmt.Fprintf(buf, "var %sPayload = [][]byte{\n", lower)
	for ndx, p := range packets {
		if ndx > 0 {
			buf.WriteByte('\n')
		}

		if p.DMA {
			fmt.Fprintf(buf, "\t// DMAADDR = 0x%04x\n", p.Addr)
			writeChunk(buf, dmaAddr.Code, []byte{byte(p.Addr), byte(p.Addr >> 8)})
			fmt.Fprintf(buf, "\n\t// DMAFIX = % x\n", p.Payload)
			writeChunk(buf, dmaFix.Code, p.Payload)
			continue
		}

		fmt.Fprintf(buf, "\t// %s = % x\n", p.Name, p.Payload)
		writeChunk(buf, p.Code, p.Payload)
	}
	fmt.Fprintf(buf, "}\n")

	_, err := w.Write(buf.Bytes())
	return err
}

func writeChunk(buf *bytes.Buffer, code uint8, payload []byte) {
	fmt.Fprintf(buf, "\t{0x%02x", code)
	for _, b := range payload {
		fmt.Fprintf(buf, ", 0x%02x", b)
	}
	buf.WriteString("},\n")
}

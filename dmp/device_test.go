package dmp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesDisjoint(t *testing.T) {
	for id := range gen2Models {
		_, clash := gen2FiveModels[id]
		assert.Falsef(t, clash, "id 0x%02x present in both generation tables", id)
	}
}

func TestFromIDFullSpace(t *testing.T) {
	for id := 0; id <= 255; id++ {
		d, err := FromID(uint8(id))

		name2, ok2 := gen2Models[uint8(id)]
		name25, ok25 := gen2FiveModels[uint8(id)]

		switch {
		case ok2:
			require.NoErrorf(t, err, "id 0x%02x", id)
			assert.Equal(t, Gen2, d.Generation())
			assert.Equal(t, name2, d.String())
			assert.Equal(t, uint8(id), d.ID())
		case ok25:
			require.NoErrorf(t, err, "id 0x%02x", id)
			assert.Equal(t, Gen2Five, d.Generation())
			assert.Equal(t, name25, d.String())
		default:
			require.Errorf(t, err, "id 0x%02x should not resolve", id)
			var ue *UnknownDeviceError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, uint8(id), ue.ID)
		}
	}
}

func TestFromNameRoundTrip(t *testing.T) {
	for id := 0; id <= 255; id++ {
		d, err := FromID(uint8(id))
		if err != nil {
			continue
		}

		byName, err := FromName(strings.ToLower(d.String()))
		require.NoErrorf(t, err, "name %s", d.String())
		assert.Equal(t, d, byName)
	}

	_, err := FromName("ISL99999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match a Renesas DMP device")
}

func TestModelConstants(t *testing.T) {
	g2, err := FromName("ISL68224")
	require.NoError(t, err)
	g25, err := FromName("RAA228218")
	require.NoError(t, err)

	assert.Equal(t, 648, g2.Lines())
	assert.Equal(t, 600, g2.CRCLine())
	assert.Equal(t, uint16(0x00c2), g2.SlotAddr())
	assert.Equal(t, uint16(0x003f), g2.CRCAddr())

	assert.Equal(t, 582, g25.Lines())
	assert.Equal(t, 526, g25.CRCLine())
	assert.Equal(t, uint16(0x00c4), g25.SlotAddr())
	assert.Equal(t, uint16(0x003c), g25.CRCAddr())

	/* Status addresses are shared across generations. */
	assert.Equal(t, uint16(0x0707), g2.ProgrammerStatusAddr())
	assert.Equal(t, uint16(0x0709), g25.ProgrammerStatusAddr())
	assert.Equal(t, uint16(0x0709), g2.BankStatusAddr())
}

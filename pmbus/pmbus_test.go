package pmbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	d, ok := FromString("isl68224")
	require.True(t, ok)
	assert.Equal(t, "ISL68224", d.Name())

	_, ok = FromString("tps546b24")
	assert.False(t, ok)
}

func TestDMACommandKinds(t *testing.T) {
	d, ok := FromString("RAA228218")
	require.True(t, ok)

	all := AllCommands(d)

	addr, ok := all["DMAADDR"]
	require.True(t, ok)
	assert.Equal(t, OpWriteWord, addr.Write)

	seq, ok := all["DMASEQ"]
	require.True(t, ok)
	assert.Equal(t, OpReadWord32, seq.Read)

	fix, ok := all["DMAFIX"]
	require.True(t, ok)
	assert.Equal(t, OpWriteWord32, fix.Write)
}

func TestIdentityCommands(t *testing.T) {
	d, ok := FromString("ISL69260")
	require.True(t, ok)

	id, ok := d.Command(CodeICDeviceID)
	require.True(t, ok)
	assert.Equal(t, "IC_DEVICE_ID", id.Name)
	assert.Equal(t, OpReadBlock, id.Read)

	rev, ok := d.Command(CodeICDeviceRev)
	require.True(t, ok)
	assert.Equal(t, "IC_DEVICE_REV", rev.Name)
}

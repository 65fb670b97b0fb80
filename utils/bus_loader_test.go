package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const busMapHeader = "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,signed,factor,offset,min,max,default,unit\n"

func writeBusMap(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bus_map.csv")
	require.NoError(t, os.WriteFile(path, []byte(busMapHeader+rows), 0o644))
	return path
}

func TestLoadBusMap_GroupsSignalsByFrame(t *testing.T) {
	path := writeBusMap(t,
		"tx,0x101,GNC_THRUST_CMD,100,8,thrust_n_x,0,16,true,0.05,0,-1600,1600,0,N\n"+
			"tx,0x101,GNC_THRUST_CMD,100,8,thrust_n_y,16,16,true,0.05,0,-1600,1600,0,N\n"+
			"rx,0x201,PWR_STATUS,100,8,headroom_kw,0,16,false,0.01,0,0,650,0,kW\n")

	m, err := LoadBusMap(path)
	require.NoError(t, err)

	fd, err := m.FrameByName("GNC_THRUST_CMD")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x101), fd.ID)
	assert.Equal(t, "tx", fd.Direction)
	require.Len(t, fd.Signals, 2)
	assert.Equal(t, "thrust_n_x", fd.Signals[0].Name)
	assert.Equal(t, "thrust_n_y", fd.Signals[1].Name)

	fd, err = m.FrameByID(0x201)
	require.NoError(t, err)
	assert.Equal(t, "PWR_STATUS", fd.Name)
	assert.False(t, fd.Signals[0].Signed)
}

func TestLoadBusMap_SortsSignalsByStartBit(t *testing.T) {
	path := writeBusMap(t,
		"tx,0x101,GNC_THRUST_CMD,100,8,thrust_n_y,16,16,true,0.05,0,-1600,1600,0,N\n"+
			"tx,0x101,GNC_THRUST_CMD,100,8,thrust_n_x,0,16,true,0.05,0,-1600,1600,0,N\n")

	m, err := LoadBusMap(path)
	require.NoError(t, err)

	fd, err := m.FrameByName("GNC_THRUST_CMD")
	require.NoError(t, err)
	assert.Equal(t, 0, fd.Signals[0].StartBit)
	assert.Equal(t, 16, fd.Signals[1].StartBit)
}

func TestLoadBusMap_RejectsBitsOutsideFrame(t *testing.T) {
	path := writeBusMap(t,
		"tx,0x101,GNC_THRUST_CMD,100,8,overflow,56,16,true,0.05,0,-1600,1600,0,N\n")
	_, err := LoadBusMap(path)
	assert.Error(t, err)
}

func TestLoadBusMap_RejectsInconsistentDLC(t *testing.T) {
	path := writeBusMap(t,
		"tx,0x101,GNC_THRUST_CMD,100,8,thrust_n_x,0,16,true,0.05,0,-1600,1600,0,N\n"+
			"tx,0x101,GNC_THRUST_CMD,100,4,thrust_n_y,16,16,true,0.05,0,-1600,1600,0,N\n")
	_, err := LoadBusMap(path)
	assert.Error(t, err)
}

func TestLoadBusMap_RejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("frame_id,frame_name\n0x101,X\n"), 0o644))
	_, err := LoadBusMap(path)
	assert.Error(t, err)
}

func TestLoadBusMap_HexAndDecimalIDs(t *testing.T) {
	path := writeBusMap(t,
		"tx,257,GNC_THRUST_CMD,100,8,thrust_n_x,0,16,true,0.05,0,-1600,1600,0,N\n")
	m, err := LoadBusMap(path)
	require.NoError(t, err)
	_, err = m.FrameByID(0x101)
	assert.NoError(t, err)
}

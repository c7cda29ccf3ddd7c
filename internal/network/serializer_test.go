package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Foghrye4/CubicChunks/internal/vec"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

func TestSerializerCubeRoundTrip(t *testing.T) {
	s, err := NewZstdSerializer()
	require.NoError(t, err)

	cube := world.NewCube(vec.Vec3{X: 1, Y: -4, Z: 2})
	cube.Blocks[0][0][0] = 5
	cube.Blocks[15][15][15] = 9
	cube.InhabitedTime = 77
	cube.FullyPopulated = true
	cube.InitialLightDone = true

	payload, err := s.EncodeCube(cube)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := s.DecodeCube(payload)
	require.NoError(t, err)
	assert.Equal(t, cube.Coords, decoded.Coords)
	assert.Equal(t, world.BlockID(5), decoded.Blocks[0][0][0])
	assert.Equal(t, world.BlockID(9), decoded.Blocks[15][15][15])
	assert.Equal(t, uint64(77), decoded.InhabitedTime)
	assert.True(t, decoded.IsFullyReady(), "Полный куб с провода готов к использованию")
}

func TestSerializerColumnRoundTrip(t *testing.T) {
	s, err := NewZstdSerializer()
	require.NoError(t, err)

	column := world.NewColumn(vec.Vec2{X: 3, Z: -1})
	column.Heights[2][3] = 80
	column.Biomes[2][3] = 1

	payload, err := s.EncodeColumn(column)
	require.NoError(t, err)

	decoded, err := s.DecodeColumn(payload)
	require.NoError(t, err)
	assert.Equal(t, int32(80), decoded.Heights[2][3])
	assert.Equal(t, uint8(1), decoded.Biomes[2][3])
}

func TestSerializerBlockDeltas(t *testing.T) {
	s, err := NewZstdSerializer()
	require.NoError(t, err)

	server := world.NewCube(vec.Vec3{})
	server.Blocks[1][2][3] = 11
	server.Blocks[4][5][6] = 12

	addrs := []uint16{
		world.PackLocalAddress(1, 2, 3),
		world.PackLocalAddress(4, 5, 6),
	}
	payload, err := s.EncodeBlockDeltas(server, addrs)
	require.NoError(t, err)

	client := world.NewCube(vec.Vec3{})
	require.NoError(t, s.ApplyBlockDeltas(client, payload))
	assert.Equal(t, world.BlockID(11), client.Blocks[1][2][3])
	assert.Equal(t, world.BlockID(12), client.Blocks[4][5][6])
	assert.Equal(t, world.AirBlockID, client.Blocks[0][0][0],
		"Не перечисленные блоки не должны меняться")
}

func TestSerializerRejectsGarbage(t *testing.T) {
	s, err := NewZstdSerializer()
	require.NoError(t, err)

	_, err = s.DecodeCube([]byte("не zstd"))
	assert.Error(t, err)
}

package domain

import "fmt"

const RoomSize = 50

type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainWall
	TerrainSwamp
	TerrainSwampyWall
)

type TerrainGrid [RoomSize][RoomSize]Terrain

// ParseEncodedTerrain decodes the server's 2500 digit terrain string, one
// digit per tile, row by row.
func ParseEncodedTerrain(encoded string) (TerrainGrid, error) {
	var grid TerrainGrid
	if len(encoded) != RoomSize*RoomSize {
		return grid, fmt.Errorf("decode terrain: expected %d tiles, got %d", RoomSize*RoomSize, len(encoded))
	}

	for i := 0; i < len(encoded); i++ {
		digit := encoded[i]
		if digit < '0' || digit > '3' {
			return grid, fmt.Errorf("decode terrain: invalid tile %q at %d", digit, i)
		}
		grid[i/RoomSize][i%RoomSize] = Terrain(digit - '0')
	}

	return grid, nil
}

func (g TerrainGrid) Encode() string {
	buf := make([]byte, 0, RoomSize*RoomSize)
	for y := range RoomSize {
		for x := range RoomSize {
			buf = append(buf, '0'+byte(g[y][x]))
		}
	}
	return string(buf)
}

func (g TerrainGrid) At(x, y int) Terrain {
	return g[y][x]
}

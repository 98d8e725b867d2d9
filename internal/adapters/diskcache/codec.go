package diskcache

import (
	"fmt"
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// Bumping keyVersion invalidates every stored key; changing the encoding
// itself requires a new database file name instead.
const keyVersion = 1

const kindTerrain = "terrain"

type cacheKey struct {
	Version int    `toml:"version"`
	Server  string `toml:"server"`
	Shard   string `toml:"shard"`
	Kind    string `toml:"kind"`
	Room    string `toml:"room"`
}

type terrainEntry struct {
	FetchedAt time.Time `toml:"fetched_at"`
	Terrain   string    `toml:"terrain"`
}

func terrainKey(server string, shard string, room domain.RoomName) cacheKey {
	return cacheKey{
		Version: keyVersion,
		Server:  server,
		Shard:   shard,
		Kind:    kindTerrain,
		Room:    room.String(),
	}
}

func encodeKey(key cacheKey) ([]byte, error) {
	data, err := toml.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode cache key: %w", err)
	}
	return data, nil
}

func decodeKey(data []byte) (cacheKey, error) {
	var key cacheKey
	if err := toml.Unmarshal(data, &key); err != nil {
		return cacheKey{}, fmt.Errorf("decode cache key: %w", err)
	}
	if key.Version != keyVersion {
		return cacheKey{}, fmt.Errorf("decode cache key: unsupported version %d", key.Version)
	}
	if key.Kind == "" {
		return cacheKey{}, fmt.Errorf("decode cache key: missing kind")
	}
	return key, nil
}

func encodeTerrain(grid domain.TerrainGrid, fetchedAt time.Time) ([]byte, error) {
	data, err := toml.Marshal(terrainEntry{FetchedAt: fetchedAt.UTC(), Terrain: grid.Encode()})
	if err != nil {
		return nil, fmt.Errorf("encode terrain entry: %w", err)
	}
	return data, nil
}

func decodeTerrain(data []byte) (domain.TerrainGrid, time.Time, error) {
	var entry terrainEntry
	if err := toml.Unmarshal(data, &entry); err != nil {
		return domain.TerrainGrid{}, time.Time{}, fmt.Errorf("decode terrain entry: %w", err)
	}

	grid, err := domain.ParseEncodedTerrain(entry.Terrain)
	if err != nil {
		return domain.TerrainGrid{}, time.Time{}, err
	}
	return grid, entry.FetchedAt, nil
}

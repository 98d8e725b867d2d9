package ports

import (
	"context"

	"github.com/bnema/screeps-cli/internal/domain"
)

type TerrainCache interface {
	GetTerrain(ctx context.Context, server string, shard string, room domain.RoomName) (domain.TerrainGrid, bool, error)
	SetTerrain(ctx context.Context, server string, shard string, room domain.RoomName, grid domain.TerrainGrid) error
}

package ports

import "github.com/bnema/screeps-cli/internal/domain"

type Connection interface {
	Send(req domain.Request)
	Poll() (domain.NetworkEvent, bool)
}

package application

import "github.com/bnema/screeps-cli/internal/domain"

type ProfileView struct {
	Profile     domain.Profile
	HasPassword bool
}

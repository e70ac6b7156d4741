package ports

import "github.com/arkade-os/colorcore/internal/core/domain"

type RepoManager interface {
	Crowdsales() domain.CrowdsaleRepository
	Close()
}

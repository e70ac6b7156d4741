package domain

import "context"

type CrowdsaleRepository interface {
	AddCrowdsale(ctx context.Context, crowdsale Crowdsale) error
	GetCrowdsale(ctx context.Context, id string) (*Crowdsale, error)
	GetAllCrowdsales(ctx context.Context) ([]Crowdsale, error)
	UpdateCrowdsale(ctx context.Context, crowdsale Crowdsale) error
	// CommitDistribution stores the distribution and the updated crowdsale
	// atomically. It fails if the pledge was already processed.
	CommitDistribution(ctx context.Context, crowdsale Crowdsale, distribution Distribution) error
	GetDistribution(ctx context.Context, crowdsaleId string, pledge Outpoint) (*Distribution, error)
	GetDistributions(ctx context.Context, crowdsaleId string) ([]Distribution, error)
	Close()
}

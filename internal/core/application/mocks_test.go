package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

type mockNodeService struct {
	mock.Mock
}

func (m *mockNodeService) ListUnspent(
	ctx context.Context, minConf, maxConf int, addresses []string,
) ([]ports.Utxo, error) {
	args := m.Called(ctx, minConf, maxConf, addresses)
	var res []ports.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]ports.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockNodeService) GetRawTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	args := m.Called(ctx, txid)
	var res *wire.MsgTx
	if a := args.Get(0); a != nil {
		res = a.(*wire.MsgTx)
	}
	return res, args.Error(1)
}

func (m *mockNodeService) SignTransaction(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error) {
	args := m.Called(ctx, tx)
	var res *wire.MsgTx
	switch a := args.Get(0).(type) {
	case *wire.MsgTx:
		res = a
	case func(*wire.MsgTx) *wire.MsgTx:
		res = a(tx)
	}
	return res, args.Error(1)
}

func (m *mockNodeService) BroadcastTransaction(ctx context.Context, tx *wire.MsgTx) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

func (m *mockNodeService) GetBlockCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNodeService) Close() {}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, outpoints ...wire.OutPoint) error {
	args := m.Called(ctx, outpoints)
	return args.Error(0)
}

func (m *mockLocker) Get(ctx context.Context) (map[wire.OutPoint]struct{}, error) {
	args := m.Called(ctx)
	var res map[wire.OutPoint]struct{}
	if a := args.Get(0); a != nil {
		res = a.(map[wire.OutPoint]struct{})
	}
	return res, args.Error(1)
}

// crowdsaleStore is a minimal in-memory crowdsale repository.
type crowdsaleStore struct {
	lock          sync.Mutex
	crowdsales    map[string]domain.Crowdsale
	distributions map[string][]domain.Distribution
	commitErr     error
}

func newCrowdsaleStore() *crowdsaleStore {
	return &crowdsaleStore{
		crowdsales:    make(map[string]domain.Crowdsale),
		distributions: make(map[string][]domain.Distribution),
	}
}

func (s *crowdsaleStore) AddCrowdsale(_ context.Context, crowdsale domain.Crowdsale) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.crowdsales[crowdsale.Id]; ok {
		return fmt.Errorf("crowdsale %s already exists", crowdsale.Id)
	}
	s.crowdsales[crowdsale.Id] = clone(crowdsale)
	return nil
}

func (s *crowdsaleStore) GetCrowdsale(_ context.Context, id string) (*domain.Crowdsale, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	crowdsale, ok := s.crowdsales[id]
	if !ok {
		return nil, nil
	}
	c := clone(crowdsale)
	return &c, nil
}

func (s *crowdsaleStore) GetAllCrowdsales(_ context.Context) ([]domain.Crowdsale, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	res := make([]domain.Crowdsale, 0, len(s.crowdsales))
	for _, c := range s.crowdsales {
		res = append(res, clone(c))
	}
	return res, nil
}

func (s *crowdsaleStore) UpdateCrowdsale(_ context.Context, crowdsale domain.Crowdsale) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.crowdsales[crowdsale.Id] = clone(crowdsale)
	return nil
}

func (s *crowdsaleStore) CommitDistribution(
	_ context.Context, crowdsale domain.Crowdsale, distribution domain.Distribution,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	for _, d := range s.distributions[crowdsale.Id] {
		if d.Pledge.Outpoint == distribution.Pledge.Outpoint {
			return errors.PLEDGE_ALREADY_PROCESSED.New("pledge already processed")
		}
	}
	s.crowdsales[crowdsale.Id] = clone(crowdsale)
	s.distributions[crowdsale.Id] = append(s.distributions[crowdsale.Id], distribution)
	return nil
}

func (s *crowdsaleStore) GetDistribution(
	_ context.Context, crowdsaleId string, pledge domain.Outpoint,
) (*domain.Distribution, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, d := range s.distributions[crowdsaleId] {
		if d.Pledge.Outpoint == pledge {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (s *crowdsaleStore) GetDistributions(
	_ context.Context, crowdsaleId string,
) ([]domain.Distribution, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]domain.Distribution{}, s.distributions[crowdsaleId]...), nil
}

func (s *crowdsaleStore) Close() {}

type repoManager struct {
	crowdsales *crowdsaleStore
}

func (r repoManager) Crowdsales() domain.CrowdsaleRepository { return r.crowdsales }
func (r repoManager) Close()                                 {}

func clone(c domain.Crowdsale) domain.Crowdsale {
	c.PriceSchedule = append([]domain.PriceTier{}, c.PriceSchedule...)
	return c
}

// manualScheduler runs its tasks only when tick is called.
type manualScheduler struct {
	lock    sync.Mutex
	tasks   []func()
	started int
}

func (s *manualScheduler) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.started++
}

func (s *manualScheduler) Stop() {}

func (s *manualScheduler) ScheduleRecurringTask(task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *manualScheduler) tick() {
	s.lock.Lock()
	tasks := append([]func(){}, s.tasks...)
	s.lock.Unlock()
	for _, task := range tasks {
		task()
	}
}

package blockscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/colorcore/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type Option func(*service)

func WithTickerInterval(interval time.Duration) Option {
	return func(s *service) {
		s.tickerInterval = interval
	}
}

type tipFetcher interface {
	GetBlockCount(ctx context.Context) (int64, error)
}

type service struct {
	node           tipFetcher
	lock           sync.Locker
	tasks          []func()
	lastTip        int64
	stopCh         chan struct{}
	stopOnce       sync.Once
	tickerInterval time.Duration
}

// NewScheduler runs the scheduled tasks every time the node reports a new
// chain tip.
func NewScheduler(node tipFetcher, opts ...Option) (ports.SchedulerService, error) {
	if node == nil {
		return nil, fmt.Errorf("missing node")
	}

	svc := &service{
		node:           node,
		lock:           &sync.Mutex{},
		tasks:          make([]func(), 0),
		lastTip:        -1,
		stopCh:         make(chan struct{}),
		tickerInterval: time.Second * 10,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func (s *service) Start() {
	go func() {
		ticker := time.NewTicker(s.tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				tasks, err := s.popTasks()
				if err != nil {
					log.Errorf("error fetching tasks: %s", err)
					continue
				}

				if len(tasks) > 0 {
					log.Debugf("running %d tasks at height %d", len(tasks), s.tip())
				}
				for _, task := range tasks {
					go task()
				}
			}
		}
	}()
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *service) ScheduleRecurringTask(task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.tasks = append(s.tasks, task)
	return nil
}

// popTasks returns the scheduled tasks only if the tip moved since the last
// call.
func (s *service) popTasks() ([]func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickerInterval)
	defer cancel()

	tip, err := s.node.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if tip <= s.lastTip {
		return nil, nil
	}
	s.lastTip = tip

	tasks := make([]func(), len(s.tasks))
	copy(tasks, s.tasks)
	return tasks, nil
}

func (s *service) tip() int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastTip
}

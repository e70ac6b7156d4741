package timescheduler

import (
	"fmt"
	"time"

	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
}

// NewScheduler runs the scheduled tasks every interval. Overlapping runs of
// the same task are skipped.
func NewScheduler(interval time.Duration) ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	svc.SingletonModeAll()
	return &service{svc, interval}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleRecurringTask(task func()) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %s", s.interval)
	}
	_, err := s.scheduler.Every(s.interval).Do(task)
	return err
}

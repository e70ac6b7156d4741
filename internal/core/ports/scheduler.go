package ports

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleRecurringTask runs task every time the scheduler ticks.
	ScheduleRecurringTask(task func()) error
}

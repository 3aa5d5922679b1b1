// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRepairScheduler runs the reconciliation sweep periodically over
// recently active users. The sweep window overlaps the interval so a user is
// never skipped across runs.
func (s *RepairService) StartRepairScheduler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			log.Println("[Repair] scheduled sweep starting")
			s.RepairRecentlyActive(interval * 2)
		}),
	)
}

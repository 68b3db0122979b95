package steward

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronDriver wraps robfig/cron/v3, always evaluating schedules against
// UTC per spec.md §4.6. The teacher has no cron-expression library of
// its own (its reconciliation loops are all time.Ticker-based); this is
// a new dependency pulled in because no pack example carries one.
type cronDriver struct {
	c *cron.Cron
}

func newCronDriver() *cronDriver {
	return &cronDriver{c: cron.New(cron.WithLocation(time.UTC))}
}

// Schedule registers fn to run on schedule's cron expression. Parse
// errors are logged and the entry is simply never scheduled, consistent
// with spec.md §4.6's "failures never crash the scheduler".
func (d *cronDriver) Schedule(schedule string, fn func()) {
	if _, err := d.c.AddFunc(schedule, fn); err != nil {
		log.Printf("steward: invalid cron schedule %q: %v", schedule, err)
	}
}

func (d *cronDriver) Start() { d.c.Start() }
func (d *cronDriver) Stop()  { d.c.Stop() }

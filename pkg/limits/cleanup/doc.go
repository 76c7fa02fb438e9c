// Package cleanup expires idle sessions and prunes the violation journal on
// a cron schedule.
//
// The limiter never schedules cleanup by itself. Services that want it
// periodic create a Scheduler:
//
//	scheduler := cleanup.NewScheduler(manager, cleanup.Config{
//	    Schedule: "@every 5m",
//	    MaxAge:   time.Hour,
//	})
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//	defer scheduler.Stop()
package cleanup

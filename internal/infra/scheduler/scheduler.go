package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/app"
	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CheckScheduler periodically runs the change-detection pipeline over every
// group for the current and upcoming weeks.
type CheckScheduler struct {
	cronEngine   *cron.Cron
	notifService app.NotificationService
	tableSource  app.TimetableSource
	logger       *logrus.Entry
	cronSpec     string
	weeksAhead   int
}

func NewCheckScheduler(
	notifService app.NotificationService,
	tableSource app.TimetableSource,
	logger *logrus.Entry,
	cronSpec string, // e.g. "*/30 * * * *"
	weeksAhead int, // how many weeks to check, starting with the current one
) *CheckScheduler {
	return &CheckScheduler{
		cronEngine:   cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		notifService: notifService,
		tableSource:  tableSource,
		logger:       logger,
		cronSpec:     cronSpec,
		weeksAhead:   weeksAhead,
	}
}

func (s *CheckScheduler) Start() {
	s.logger.Info("Starting check scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for timetable check")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled check run finished with failures")
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add check cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Infof("Check scheduler started with spec %q", s.cronSpec)
}

// RunOnce loads the parsed timetables of every group for each week offset and
// runs the notification pipeline over them. Failures are aggregated; a failed
// group or week does not stop the others.
func (s *CheckScheduler) RunOnce(ctx context.Context) error {
	groups, err := s.tableSource.Groups(ctx)
	if err != nil {
		return err
	}
	s.logger.Infof("Check run started for %d groups", len(groups))

	var failures []error
	for offset := 0; offset < s.weeksAhead; offset++ {
		week := schedule.WeekOf(time.Now().AddDate(0, 0, 7*offset))

		timetables := make(map[string]schedule.Timetable, len(groups))
		for _, groupID := range groups {
			tt, err := s.tableSource.Load(ctx, groupID, week)
			if err != nil {
				if errors.Is(err, app.ErrNoTimetable) {
					s.logger.WithField("group", groupID).WithField("week", week.ID).Debug("No parsed timetable, skipping")
					continue
				}
				failures = append(failures, err)
				continue
			}
			timetables[groupID] = tt
		}
		if len(timetables) == 0 {
			continue
		}

		if err := s.notifService.RunWeek(ctx, week, timetables); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (s *CheckScheduler) Stop() {
	s.logger.Info("Stopping check scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Check scheduler gracefully stopped.")
}

package indices

import (
	"context"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartCron schedules the full sync with a six field (seconds first) cron spec.
func StartCron(spec string) (*cron.Cron, error) {
	crontab := cron.New(cron.WithSeconds())
	_, err := crontab.AddFunc(spec, func() {
		if err := IndicesFullSyncFunc(context.Background()); err != nil {
			logrus.Warnf("scheduled indices full sync: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}

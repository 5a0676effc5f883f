package indices

import (
	"context"
	"fmt"
	"sync"

	"backoffice/client/es"
	"backoffice/domain"
	"backoffice/event"
	"backoffice/persistence"

	"github.com/sirupsen/logrus"
)

var (
	RuntimeIndexEventHandlerName = "runtimeIndexer"

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
	LoadRuntimesFunc       = LoadRuntimes

	SyncBatchSize = 500
)

// Register keeps the index in step with every committed runtime write published on the bus.
func Register(s event.Subscriber) {
	s.OnSaved(RuntimeIndexEventHandlerName, func(ctx context.Context, e *event.Saved) error {
		return indexSource(ctx, &e.Source)
	})
}

func indexSource(ctx context.Context, source *event.Source) error {
	if !es.Enabled() {
		return nil
	}
	if err := IndexRuntimes(ctx, []domain.WorkflowRuntimeData{*source.Runtime}); err != nil {
		return fmt.Errorf("index workflow runtime %d, %w", source.Runtime.ID, err)
	}
	return nil
}

// ScheduleNewSyncRun starts a full sync in background, it reports false when a sync is already running.
func ScheduleNewSyncRun() bool {
	lock.Lock()
	if running {
		lock.Unlock()
		return false
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := IndicesFullSyncFunc(context.Background()); err != nil {
			logrus.Warnf("indices fully sync: %v", err)
		}
	}()
	waitRunning.Wait()
	return true
}

func LoadRuntimes(ctx context.Context, page, size int) ([]domain.WorkflowRuntimeData, error) {
	runtimes := []domain.WorkflowRuntimeData{}
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Order("id ASC").
		Offset((page - 1) * size).Limit(size).Find(&runtimes).Error
	if err != nil {
		return nil, err
	}
	return runtimes, nil
}

// IndicesFullSync re-indexes every runtime page by page, a failing page is logged and skipped.
func IndicesFullSync(ctx context.Context) (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()
	if !es.Enabled() {
		return nil
	}

	for page := 1; ; page++ {
		runtimes, err := LoadRuntimesFunc(ctx, page, SyncBatchSize)
		if err != nil {
			return fmt.Errorf("retrieve runtimes (page = %d, pageSize = %d): %w", page, SyncBatchSize, err)
		}
		if len(runtimes) == 0 {
			logrus.Infof("indices fully sync: there are no more runtimes to index")
			return nil
		}
		if err := IndexRuntimes(ctx, runtimes); err != nil {
			logrus.Warnf("indices fully sync: error on index runtimes (page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
	}
}

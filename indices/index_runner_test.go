package indices_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"backoffice/indices"

	. "github.com/onsi/gomega"
)

func TestStartCron(t *testing.T) {
	RegisterTestingT(t)

	t.Run("invalid spec should be rejected", func(t *testing.T) {
		c, err := indices.StartCron("every now and then")
		Expect(c).To(BeNil())
		Expect(err).ToNot(BeNil())
	})

	t.Run("full sync should be triggered on schedule", func(t *testing.T) {
		origin := indices.IndicesFullSyncFunc
		defer func() { indices.IndicesFullSyncFunc = origin }()
		var runs int32
		indices.IndicesFullSyncFunc = func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		}

		c, err := indices.StartCron("* * * * * *")
		Expect(err).To(BeNil())
		defer c.Stop()
		Eventually(func() int32 { return atomic.LoadInt32(&runs) }, 3*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 1))
	})
}

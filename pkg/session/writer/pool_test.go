package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/storage"
	"github.com/papercomputeco/medibot/pkg/storage/inmemory"
)

// recordingDriver remembers the turn count of every Put, per session.
type recordingDriver struct {
	*inmemory.Driver

	mu     sync.Mutex
	writes map[string][]int
	fail   bool
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{Driver: inmemory.NewDriver(), writes: map[string][]int{}}
}

func (d *recordingDriver) Put(ctx context.Context, s *conversation.Session) error {
	d.mu.Lock()
	d.writes[s.ID] = append(d.writes[s.ID], len(s.Turns))
	fail := d.fail
	d.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return d.Driver.Put(ctx, s)
}

func snapshot(id string, turns int) *conversation.Session {
	s := conversation.NewSession(id, time.Now())
	for range turns {
		s.Append(conversation.Turn{Role: conversation.RoleUser, Content: "x", Timestamp: time.Now()})
	}
	return s
}

var _ storage.Driver = (*recordingDriver)(nil)

var _ = Describe("Writer Pool", func() {
	var (
		ctx    context.Context
		driver *recordingDriver
		pool   *Pool
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newRecordingDriver()

		var err error
		pool, err = NewPool(&Config{Driver: driver, NumWorkers: 4, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
	})

	It("requires a driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies writes for one session in enqueue order", func() {
		for i := 1; i <= 50; i++ {
			Expect(pool.Put(ctx, snapshot("a", i))).To(Succeed())
		}
		Expect(pool.Flush(ctx)).To(Succeed())

		driver.mu.Lock()
		defer driver.mu.Unlock()
		Expect(driver.writes["a"]).To(HaveLen(50))
		for i, n := range driver.writes["a"] {
			Expect(n).To(Equal(i + 1))
		}
	})

	It("spreads sessions across shards and drains them all", func() {
		for i := range 20 {
			Expect(pool.Put(ctx, snapshot(fmt.Sprintf("s-%d", i), 1))).To(Succeed())
		}
		pool.Close()

		sessions, err := driver.ListRecent(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(20))
	})

	It("orders deletes behind pending writes", func() {
		Expect(pool.Put(ctx, snapshot("a", 1))).To(Succeed())

		existed, err := pool.Delete(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(existed).To(BeTrue())

		_, err = driver.Get(ctx, "a")
		Expect(storage.IsNotFound(err)).To(BeTrue())
	})

	It("logs and survives driver failures", func() {
		driver.mu.Lock()
		driver.fail = true
		driver.mu.Unlock()

		Expect(pool.Put(ctx, snapshot("a", 1))).To(Succeed())
		Expect(pool.Flush(ctx)).To(Succeed())

		_, err := driver.Get(ctx, "a")
		Expect(storage.IsNotFound(err)).To(BeTrue())
	})

	It("rejects work after Close", func() {
		pool.Close()
		Expect(pool.Put(ctx, snapshot("a", 1))).To(MatchError(ErrClosed))
		_, err := pool.Delete(ctx, "a")
		Expect(err).To(MatchError(ErrClosed))
	})
})

package capture

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/book-scanner/internal/apperrors"
)

// slowDevice holds Acquire open until unblock is closed, like a browser
// waiting on a permission prompt. With honourCtx it gives up when the
// request is cancelled.
type slowDevice struct {
	entered   chan struct{}
	unblock   chan struct{}
	honourCtx bool

	mu      sync.Mutex
	streams []*fakeStream
}

func newSlowDevice(honourCtx bool) *slowDevice {
	return &slowDevice{
		entered:   make(chan struct{}, 1),
		unblock:   make(chan struct{}),
		honourCtx: honourCtx,
	}
}

func (d *slowDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	d.entered <- struct{}{}
	if d.honourCtx {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.unblock:
		}
	} else {
		<-d.unblock
	}
	s := &fakeStream{frame: blankImage(40, 30)}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *slowDevice) Streams() []*fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStream(nil), d.streams...)
}

var _ = Describe("Session with a slow camera", func() {
	var (
		device  *slowDevice
		session *Session
		ctx     context.Context
		started chan error
	)

	start := func() {
		started = make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			started <- session.StartCamera(ctx, true)
		}()
		Eventually(device.entered).Should(Receive())
	}

	// returnsWithin fails the test if fn is still running after a second
	returnsWithin := func(fn func()) {
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			fn()
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	}

	JustBeforeEach(func() {
		ctx = context.Background()
		session = newSession("session-1", ModeCameraScan, Dependencies{Device: device})
	})

	When("the device ignores cancellation", func() {
		BeforeEach(func() {
			device = newSlowDevice(false)
		})

		It("should not block Cancel or View while the camera opens", func() {
			start()

			returnsWithin(func() { _ = session.View() })
			returnsWithin(func() { Expect(session.Cancel()).To(Succeed()) })

			close(device.unblock)
			var err error
			Eventually(started).Should(Receive(&err))
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindInvalidState))

			v := session.View()
			Expect(v.State).To(Equal(StateIdle))
			Expect(v.CameraOpen).To(BeFalse())
			Expect(v.Status).To(Equal(statusCancelled))

			streams := device.Streams()
			Expect(streams).To(HaveLen(1))
			Expect(streams[0].Releases()).To(Equal(1))
		})

		It("should release a stream that arrives after Close", func() {
			start()
			returnsWithin(session.Close)

			close(device.unblock)
			var err error
			Eventually(started).Should(Receive(&err))
			Expect(err).To(MatchError(errSessionClosed))
			Expect(device.Streams()[0].Releases()).To(Equal(1))
		})

		It("should refuse other operations until the camera is open", func() {
			start()
			Expect(apperrors.KindOf(session.StartCamera(ctx, true))).To(Equal(apperrors.KindInvalidState))
			Expect(apperrors.KindOf(session.EnterManual())).To(Equal(apperrors.KindInvalidState))

			close(device.unblock)
			Eventually(started).Should(Receive(BeNil()))
			Expect(session.View().CameraOpen).To(BeTrue())
			Expect(session.State()).To(Equal(StateCameraActive))
		})
	})

	When("the device honours cancellation", func() {
		BeforeEach(func() {
			device = newSlowDevice(true)
		})

		It("should stop waiting on the device when cancelled", func() {
			start()
			Expect(session.Cancel()).To(Succeed())

			var err error
			Eventually(started).Should(Receive(&err))
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindInvalidState))
			Expect(device.Streams()).To(BeEmpty())
			Expect(session.State()).To(Equal(StateIdle))
		})
	})
})

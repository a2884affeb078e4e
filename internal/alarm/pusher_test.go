package alarm

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pusher", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	Context("when every target answers 200", func() {
		It("delivers to all targets concurrently", func() {
			var hits int32
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(http.StatusOK)
			}))

			p := New([]Target{
				{URL: server.URL, TimeoutS: 2, Retries: 1},
				{URL: server.URL, TimeoutS: 2, Retries: 1},
			})
			p.Push("F004", "latency high", "WARNING")

			Eventually(func() int32 {
				return atomic.LoadInt32(&hits)
			}, "2s", "10ms").Should(Equal(int32(2)))
		})
	})

	Context("when a target fails before succeeding", func() {
		It("retries delivery until it succeeds or exhausts retries", func() {
			var attempts int32
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&attempts, 1)
				if n < 2 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			p := New([]Target{{URL: server.URL, TimeoutS: 2, Retries: 3}})
			p.Push("F001", "plc link down", "CRITICAL")

			Eventually(func() int32 {
				return atomic.LoadInt32(&attempts)
			}, "3s", "10ms").Should(BeNumerically(">=", 2))
		})
	})
})

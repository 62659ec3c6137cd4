package dependency_test

import (
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/api-gateway/internal/dependency"
)

var _ = Describe("Dependency", func() {
	var (
		baseURL *url.URL
		d       *dependency.Dependency
	)

	BeforeEach(func() {
		var err error
		baseURL, err = url.Parse("http://service_users:8000")
		Expect(err).NotTo(HaveOccurred())
		d = dependency.New("users", baseURL)
	})

	Describe("New", func() {
		It("should keep name and address", func() {
			Expect(d.Name()).To(Equal("users"))
			Expect(d.URL()).To(Equal(baseURL))
		})

		It("should start healthy", func() {
			Expect(d.IsHealthy()).To(BeTrue())
		})

		It("should treat not found as data by default", func() {
			Expect(d.NotFoundAsData()).To(BeTrue())
		})

		It("should honour options", func() {
			d = dependency.New("orders", baseURL,
				dependency.WithNotFoundAsData(false),
				dependency.WithHealthPath("/healthz"))
			Expect(d.NotFoundAsData()).To(BeFalse())
			Expect(d.HealthURL().String()).To(Equal("http://service_users:8000/healthz"))
		})
	})

	Describe("Resolve", func() {
		It("should append the path to the base address", func() {
			Expect(d.Resolve("/users/42").String()).To(Equal("http://service_users:8000/users/42"))
		})

		It("should keep the query string", func() {
			Expect(d.Resolve("/users?limit=2").String()).To(Equal("http://service_users:8000/users?limit=2"))
		})

		It("should respect a base path", func() {
			withPath, _ := url.Parse("http://localhost:8081/api/")
			d = dependency.New("users", withPath)
			Expect(d.Resolve("/users/1").String()).To(Equal("http://localhost:8081/api/users/1"))
		})

		It("should default the health path to the service name", func() {
			Expect(d.HealthURL().Path).To(Equal("/users/health"))
		})
	})

	Describe("Health Management", func() {
		It("should report changes only once", func() {
			Expect(d.SetHealthy(false)).To(BeTrue())
			Expect(d.SetHealthy(false)).To(BeFalse())
			Expect(d.IsHealthy()).To(BeFalse())
		})

		It("should be thread-safe", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(healthy bool) {
					defer wg.Done()
					d.SetHealthy(healthy)
					_ = d.IsHealthy()
				}(i%2 == 0)
			}
			wg.Wait()
		})
	})

	Describe("Response Time Tracking (EWMA)", func() {
		It("should be zero before any response", func() {
			Expect(d.EWMATime()).To(BeZero())
		})

		It("should seed with the first response", func() {
			d.RecordResponse(100 * time.Millisecond)
			Expect(d.EWMATime()).To(Equal(100 * time.Millisecond))
		})

		It("should smooth subsequent responses", func() {
			d.RecordResponse(100 * time.Millisecond)
			d.RecordResponse(200 * time.Millisecond)
			Expect(d.EWMATime()).To(BeNumerically("~", 120*time.Millisecond, time.Millisecond))
		})
	})
})

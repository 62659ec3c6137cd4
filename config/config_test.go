package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/api-gateway/config"
	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
)

func validConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Address: ":8000", Environment: config.EnvDev},
		HealthCheck: config.HealthCheckConfig{Interval: "5s"},
		Logging:     config.LoggingConfig{Level: config.LogLevelInfo},
		Breaker: config.BreakerConfig{
			ErrorThresholdPercentage: 50,
			RequestTimeout:           "3s",
			ResetTimeout:             "3s",
			MinimumRequests:          5,
			Window:                   "10s",
			Buckets:                  10,
		},
		Dependencies: []config.DependencyConfig{
			{Name: "users", URL: "http://localhost:8001"},
			{Name: "orders", URL: "http://localhost:8002"},
		},
	}
}

var _ = Describe("Config", func() {
	var tempDir string

	writeFile := func(name, content string) {
		err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				writeFile("config.yaml", `
server:
  address: ":9000"
  environment: "staging"

health_check:
  interval: "10s"

breaker:
  error_threshold_percentage: 25
  request_timeout: "500ms"
  reset_timeout: "30s"
  minimum_requests: 10
  window: "20s"
  buckets: 20

dependencies:
  - name: "users"
    url: "http://users:8000"
  - name: "orders"
    url: "http://orders:8000"
    health_path: "/healthz"
    not_found_as_data: false

events:
  nats_url: "nats://localhost:4222"
  subject: "prod.circuit"

logging:
  level: "debug"
`)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":9000"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvStaging))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
				Expect(cfg.HealthCheckInterval()).To(Equal(10 * time.Second))
			})

			It("should parse the breaker section", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())

				cb, err := cfg.Breaker.CircuitBreaker()
				Expect(err).NotTo(HaveOccurred())
				Expect(cb.ErrorThresholdPercentage).To(Equal(25.0))
				Expect(cb.RequestTimeout).To(Equal(500 * time.Millisecond))
				Expect(cb.ResetTimeout).To(Equal(30 * time.Second))
				Expect(cb.MinimumRequests).To(Equal(10))
				Expect(cb.Window).To(Equal(20 * time.Second))
				Expect(cb.Buckets).To(Equal(20))
			})

			It("should parse dependencies", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Dependencies).To(HaveLen(2))
				Expect(cfg.Dependencies[0].Name).To(Equal("users"))
				Expect(cfg.Dependencies[0].ExpectNotFound()).To(BeTrue())
				Expect(cfg.Dependencies[1].HealthPath).To(Equal("/healthz"))
				Expect(cfg.Dependencies[1].ExpectNotFound()).To(BeFalse())
			})

			It("should parse events", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Events.NATSURL).To(Equal("nats://localhost:4222"))
				Expect(cfg.Events.Subject).To(Equal("prod.circuit"))
			})
		})

		Context("without a config file", func() {
			It("should fall back to defaults", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Address).To(Equal(":8000"))
				Expect(cfg.Dependencies).To(HaveLen(2))
				Expect(cfg.Events.NATSURL).To(BeEmpty())

				cb, err := cfg.Breaker.CircuitBreaker()
				Expect(err).NotTo(HaveOccurred())
				Expect(cb).To(Equal(circuitbreaker.DefaultConfig()))
			})
		})

		Context("with environment variables", func() {
			It("should override breaker settings", func() {
				GinkgoT().Setenv("BREAKER_RESET_TIMEOUT", "45s")
				GinkgoT().Setenv("SERVER_ENVIRONMENT", "prod")

				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Breaker.ResetTimeout).To(Equal("45s"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvProd))
			})
		})

		Context("with invalid values", func() {
			It("should reject an unknown environment", func() {
				writeFile("config.yaml", "server:\n  environment: \"qa\"\n")
				_, err := config.Load(tempDir)
				Expect(err).To(HaveOccurred())
			})

			It("should reject a malformed file", func() {
				writeFile("config.yaml", "server: [::\n")
				_, err := config.Load(tempDir)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		It("should accept a complete config", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		DescribeTable("should reject",
			func(mutate func(*config.Config)) {
				cfg := validConfig()
				mutate(cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("a bad address", func(c *config.Config) { c.Server.Address = "invalid:host:port" }),
			Entry("an unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }),
			Entry("a bad interval", func(c *config.Config) { c.HealthCheck.Interval = "soon" }),
			Entry("a threshold above 100", func(c *config.Config) { c.Breaker.ErrorThresholdPercentage = 150 }),
			Entry("a negative reset timeout", func(c *config.Config) { c.Breaker.ResetTimeout = "-1s" }),
			Entry("zero buckets", func(c *config.Config) { c.Breaker.Buckets = 0 }),
			Entry("no dependencies", func(c *config.Config) { c.Dependencies = nil }),
			Entry("a duplicate dependency", func(c *config.Config) {
				c.Dependencies = append(c.Dependencies, config.DependencyConfig{Name: "users", URL: "http://other:8000"})
			}),
			Entry("an uppercase dependency name", func(c *config.Config) { c.Dependencies[0].Name = "Users" }),
			Entry("a non-http dependency", func(c *config.Config) { c.Dependencies[0].URL = "ftp://users:21" }),
			Entry("a relative health path", func(c *config.Config) { c.Dependencies[0].HealthPath = "health" }),
			Entry("an invalid nats url", func(c *config.Config) { c.Events.NATSURL = "not a url" }),
			Entry("a nats url without subject", func(c *config.Config) { c.Events.NATSURL = "nats://localhost:4222" }),
		)
	})

	Describe("LoadService", func() {
		It("should use the default address", func() {
			cfg, err := config.LoadService("users", ":8001", tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Address).To(Equal(":8001"))
			Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
		})

		It("should read the service file", func() {
			writeFile("orders.yaml", "server:\n  address: \":9102\"\nlogging:\n  level: \"warn\"\n")

			cfg, err := config.LoadService("orders", ":8002", tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Address).To(Equal(":9102"))
			Expect(cfg.Logging.Level).To(Equal(config.LogLevelWarn))
		})

		It("should honour prefixed environment overrides", func() {
			GinkgoT().Setenv("USERS_SERVER_ADDRESS", ":9201")

			cfg, err := config.LoadService("users", ":8001", tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Address).To(Equal(":9201"))
		})
	})
})

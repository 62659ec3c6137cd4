package invoker_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/api-gateway/internal/dependency"
	"github.com/angeloszaimis/api-gateway/internal/invoker"
)

var _ = Describe("HTTPInvoker", func() {
	var (
		upstream *httptest.Server
		dep      *dependency.Dependency
		inv      *invoker.HTTPInvoker
		received chan *http.Request
		bodies   chan string
	)

	BeforeEach(func() {
		received = make(chan *http.Request, 1)
		bodies = make(chan string, 1)

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received <- r
			bodies <- string(body)

			switch r.URL.Path {
			case "/users/1":
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":1,"name":"Ada"}`))
			case "/users":
				w.WriteHeader(http.StatusCreated)
				w.Write(body)
			case "/users/404":
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"User not found"}`))
			case "/users/huge":
				w.Header().Set("Content-Type", "application/json")
				w.Write(bytes.Repeat([]byte("a"), 10<<20+1))
			case "/users/slow":
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))

		u, err := url.Parse(upstream.URL)
		Expect(err).NotTo(HaveOccurred())
		dep = dependency.New("users", u)
		inv = invoker.NewHTTPInvoker(dep, nil)
	})

	AfterEach(func() {
		upstream.Close()
	})

	It("should classify 2xx as success and keep the payload", func() {
		outcome := inv.Invoke(context.Background(), invoker.Request{Method: http.MethodGet, Path: "/users/1"})

		Expect(outcome.Kind).To(Equal(invoker.KindSuccess))
		Expect(outcome.StatusCode).To(Equal(http.StatusOK))
		Expect(string(outcome.Body)).To(Equal(`{"id":1,"name":"Ada"}`))
		Expect(outcome.ContentType).To(Equal("application/json"))
		Expect(outcome.Failed()).To(BeFalse())
		Expect(dep.EWMATime()).To(BeNumerically(">", 0))
	})

	It("should pass request bodies and headers through verbatim", func() {
		header := http.Header{}
		header.Set("X-Request-ID", "abc")

		outcome := inv.Invoke(context.Background(), invoker.Request{
			Method: http.MethodPost,
			Path:   "/users",
			Body:   []byte(`{"name":"Grace"}`),
			Header: header,
		})

		Expect(outcome.Kind).To(Equal(invoker.KindSuccess))
		Expect(outcome.StatusCode).To(Equal(http.StatusCreated))

		var r *http.Request
		Eventually(received).Should(Receive(&r))
		Expect(r.Method).To(Equal(http.MethodPost))
		Expect(r.Header.Get("X-Request-ID")).To(Equal("abc"))
		Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
		Eventually(bodies).Should(Receive(Equal(`{"name":"Grace"}`)))
	})

	It("should classify 404 as an expected failure", func() {
		outcome := inv.Invoke(context.Background(), invoker.Request{Path: "/users/404"})

		Expect(outcome.Kind).To(Equal(invoker.KindExpectedFailure))
		Expect(string(outcome.Body)).To(ContainSubstring("User not found"))
		Expect(outcome.Failed()).To(BeFalse())
	})

	It("should classify 404 as a transport error when not found is not data", func() {
		u, _ := url.Parse(upstream.URL)
		inv = invoker.NewHTTPInvoker(dependency.New("users", u, dependency.WithNotFoundAsData(false)), nil)

		outcome := inv.Invoke(context.Background(), invoker.Request{Path: "/users/404"})

		Expect(outcome.Kind).To(Equal(invoker.KindTransportError))
		Expect(outcome.Err).To(MatchError(invoker.ErrTransport))
	})

	It("should classify other statuses as transport errors", func() {
		outcome := inv.Invoke(context.Background(), invoker.Request{Path: "/boom"})

		Expect(outcome.Kind).To(Equal(invoker.KindTransportError))
		Expect(outcome.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(outcome.Failed()).To(BeTrue())
		Expect(outcome.Err).To(MatchError(invoker.ErrTransport))
	})

	It("should refuse a payload larger than the response limit", func() {
		outcome := inv.Invoke(context.Background(), invoker.Request{Path: "/users/huge"})

		Expect(outcome.Kind).To(Equal(invoker.KindTransportError))
		Expect(outcome.StatusCode).To(Equal(http.StatusOK))
		Expect(outcome.Body).To(BeEmpty())
		Expect(outcome.Err).To(MatchError(invoker.ErrTransport))
		Expect(outcome.Err.Error()).To(ContainSubstring("exceeds"))
	})

	It("should classify an expired deadline as a timeout", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		outcome := inv.Invoke(ctx, invoker.Request{Path: "/users/slow"})

		Expect(outcome.Kind).To(Equal(invoker.KindTimeout))
		Expect(outcome.Err).To(MatchError(invoker.ErrTimeout))
	})

	It("should classify a canceled caller as canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		outcome := inv.Invoke(ctx, invoker.Request{Path: "/users/slow"})

		Expect(outcome.Kind).To(Equal(invoker.KindCanceled))
		Expect(outcome.Failed()).To(BeFalse())
	})

	It("should classify refused connections as transport errors", func() {
		u, _ := url.Parse(upstream.URL)
		upstream.Close()
		inv = invoker.NewHTTPInvoker(dependency.New("users", u), nil)

		outcome := inv.Invoke(context.Background(), invoker.Request{Path: "/users/1"})

		Expect(outcome.Kind).To(Equal(invoker.KindTransportError))
	})
})

var _ = Describe("Kind", func() {
	It("should render readable names", func() {
		Expect(invoker.KindSuccess.String()).To(Equal("success"))
		Expect(invoker.KindExpectedFailure.String()).To(Equal("expected_failure"))
		Expect(invoker.KindTimeout.String()).To(Equal("timeout"))
		Expect(invoker.KindTransportError.String()).To(Equal("transport_error"))
		Expect(invoker.KindCanceled.String()).To(Equal("canceled"))
	})
})

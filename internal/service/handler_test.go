package service_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/api-gateway/internal/service"
)

var _ = Describe("Handler", func() {
	var router *mux.Router

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
		return rec
	}

	BeforeEach(func() {
		router = service.NewHandler(service.Users, service.NewStore(), nil).Router()
	})

	It("should create and fetch a user", func() {
		rec := serve(http.MethodPost, "/users", `{"name":"Ada"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(MatchJSON(`{"id":1,"name":"Ada"}`))

		rec = serve(http.MethodGet, "/users/1", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"id":1,"name":"Ada"}`))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
	})

	It("should list users", func() {
		serve(http.MethodPost, "/users", `{"name":"Ada"}`)
		serve(http.MethodPost, "/users", `{"name":"Grace"}`)

		rec := serve(http.MethodGet, "/users", "")
		Expect(rec.Body.String()).To(MatchJSON(`[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]`))
	})

	It("should list an empty collection as an array", func() {
		rec := serve(http.MethodGet, "/users", "")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should answer 404 for a missing user", func() {
		rec := serve(http.MethodGet, "/users/42", "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"User not found"}`))
	})

	It("should merge fields on update", func() {
		serve(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)

		rec := serve(http.MethodPut, "/users/1", `{"name":"Ada L."}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"id":1,"name":"Ada L.","email":"ada@example.com"}`))
	})

	It("should report the deleted user", func() {
		serve(http.MethodPost, "/users", `{"name":"Ada"}`)

		rec := serve(http.MethodDelete, "/users/1", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"User deleted","deletedUser":{"id":1,"name":"Ada"}}`))

		Expect(serve(http.MethodGet, "/users/1", "").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject an invalid body", func() {
		rec := serve(http.MethodPost, "/users", `{not json`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should not treat health and status as ids", func() {
		rec := serve(http.MethodGet, "/users/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var health map[string]string
		Expect(json.Unmarshal(rec.Body.Bytes(), &health)).To(Succeed())
		Expect(health["status"]).To(Equal("OK"))
		Expect(health["service"]).To(Equal("Users Service"))
		Expect(health).To(HaveKey("timestamp"))

		rec = serve(http.MethodGet, "/users/status", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"Users service is running"}`))
	})

	It("should name orders correctly", func() {
		router = service.NewHandler(service.Orders, service.NewStore(), nil).Router()

		rec := serve(http.MethodGet, "/orders/5", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Order not found"}`))

		serve(http.MethodPost, "/orders", `{"userId":42}`)
		rec = serve(http.MethodDelete, "/orders/1", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"Order deleted","deletedOrder":{"id":1,"userId":42}}`))
	})
})

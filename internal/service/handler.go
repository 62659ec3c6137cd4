package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxBodyBytes = 1 << 20

// Resource names a backend, e.g. Resource{Singular: "user", Plural: "users"}.
type Resource struct {
	Singular string
	Plural   string
}

var (
	Users  = Resource{Singular: "user", Plural: "users"}
	Orders = Resource{Singular: "order", Plural: "orders"}
)

type Handler struct {
	resource Resource
	store    *Store
	logger   *slog.Logger
	title    string
	noun     string
}

func NewHandler(resource Resource, store *Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	caser := cases.Title(language.English)

	return &Handler{
		resource: resource,
		store:    store,
		logger:   logger,
		title:    caser.String(resource.Plural),
		noun:     caser.String(resource.Singular),
	}
}

// Router registers the CRUD, health and status routes under /<plural>.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	base := "/" + h.resource.Plural

	r.HandleFunc(base, h.list).Methods(http.MethodGet)
	r.HandleFunc(base, h.create).Methods(http.MethodPost)
	r.HandleFunc(base+"/health", h.health).Methods(http.MethodGet)
	r.HandleFunc(base+"/status", h.status).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id:[0-9]+}", h.update).Methods(http.MethodPut)
	r.HandleFunc(base+"/{id:[0-9]+}", h.remove).Methods(http.MethodDelete)

	return r
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decode(w, r)
	if !ok {
		return
	}

	record := h.store.Create(fields)
	h.logger.Info("Created "+h.resource.Singular, slog.Any("id", record["id"]))

	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	record, found := h.store.Get(id)
	if !found {
		h.notFound(w)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	fields, ok := h.decode(w, r)
	if !ok {
		return
	}

	record, found := h.store.Update(id, fields)
	if !found {
		h.notFound(w)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	record, found := h.store.Delete(id)
	if !found {
		h.notFound(w)
		return
	}

	h.logger.Info("Deleted "+h.resource.Singular, slog.Int("id", id))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":          h.noun + " deleted",
		"deleted" + h.noun: record,
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"service":   h.title + " Service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": h.title + " service is running",
	})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid " + h.resource.Singular + " id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Record, bool) {
	var fields Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return nil, false
	}
	return fields, true
}

func (h *Handler) notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": h.noun + " not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

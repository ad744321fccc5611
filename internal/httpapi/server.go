// v0
// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/patonw/elevator-sim/internal/bus"
	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/ingest"
	"github.com/patonw/elevator-sim/internal/trajectory"
)

// Fleet is the read side of the building the API reports on.
type Fleet interface {
	NumFloors() int
	Paths() []*trajectory.Trajectory
}

// BusStatus reports partition state.
type BusStatus interface {
	Health() event.Health
	Status() []bus.PartitionStatus
}

// Instrumentation records per-route request metrics.
type Instrumentation interface {
	WrapHandler(route string, next http.Handler) http.Handler
	Handler() http.Handler
}

// Readiness is flipped once the simulation loop is running.
type Readiness struct {
	ready atomic.Bool
}

func (r *Readiness) SetReady(v bool) { r.ready.Store(v) }
func (r *Readiness) Ready() bool     { return r.ready.Load() }

// Server exposes fleet state and accepts passenger requests.
type Server struct {
	fleet   Fleet
	bus     event.Bus
	status  BusStatus
	ready   *Readiness
	metrics Instrumentation
	log     *slog.Logger
}

func NewServer(f Fleet, b event.Bus, status BusStatus, ready *Readiness, m Instrumentation, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if ready == nil {
		ready = &Readiness{}
	}
	return &Server{fleet: f, bus: b, status: status, ready: ready, metrics: m, log: log}
}

// Router wires all routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.handle(r, "/health/live", s.live, http.MethodGet)
	s.handle(r, "/health/ready", s.readiness, http.MethodGet)
	s.handle(r, "/bus", s.busHealth, http.MethodGet)
	s.handle(r, "/elevators", s.elevators, http.MethodGet)
	s.handle(r, "/elevators/{id:[0-9]+}", s.elevator, http.MethodGet)
	s.handle(r, "/requests", s.request, http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handler is the router with access logging and panic recovery.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}), handlers.PrintRecoveryStack(false))(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

func (s *Server) handle(r *mux.Router, path string, fn http.HandlerFunc, method string) {
	var h http.Handler = fn
	if s.metrics != nil {
		h = s.metrics.WrapHandler(path, h)
	}
	r.Handle(path, h).Methods(method)
}

type recoveryLogger struct{ log *slog.Logger }

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("http_handler_panic", slog.Any("panic", v))
}

func (s *Server) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readiness(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type busView struct {
	Health     string                `json:"health"`
	Partitions []bus.PartitionStatus `json:"partitions"`
}

func (s *Server) busHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, busView{Health: s.status.Health().String(), Partitions: s.status.Status()})
}

type elevatorView struct {
	ID            int    `json:"id"`
	Floor         int    `json:"floor"`
	Time          int64  `json:"time"`
	Turnpoints    []int  `json:"turnpoints"`
	TimeLeft      int64  `json:"timeLeft"`
	TimeUntilIdle int64  `json:"timeUntilIdle"`
	Policy        string `json:"policy"`
}

func viewOf(id int, t *trajectory.Trajectory) elevatorView {
	return elevatorView{
		ID:            id,
		Floor:         t.Floor(),
		Time:          t.Time(),
		Turnpoints:    t.Turnpoints(),
		TimeLeft:      t.TimeLeft(),
		TimeUntilIdle: t.TimeUntilIdle(),
		Policy:        t.Policy().String(),
	}
}

func (s *Server) elevators(w http.ResponseWriter, _ *http.Request) {
	paths := s.fleet.Paths()
	out := make([]elevatorView, 0, len(paths))
	for i, t := range paths {
		out = append(out, viewOf(i, t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) elevator(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	paths := s.fleet.Paths()
	if err != nil || id < 0 || id >= len(paths) {
		writeError(w, http.StatusNotFound, "elevator not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, paths[id]))
}

func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req ingest.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.Validate(s.fleet.NumFloors()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := ingest.Submit(s.bus, req)
	s.log.Info("request_submitted", slog.String("passenger", p.ID.String()), slog.Int("origin", req.Origin), slog.Int("destination", req.Destination))
	writeJSON(w, http.StatusAccepted, map[string]string{"passenger": p.ID.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

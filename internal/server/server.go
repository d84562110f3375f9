// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/tamzrod/potentiostat/internal/acquire"
	"github.com/tamzrod/potentiostat/internal/controller"
	"github.com/tamzrod/potentiostat/internal/mode"
	"github.com/tamzrod/potentiostat/internal/status"
)

// Engine is the controller surface exposed over HTTP.
type Engine interface {
	Registry() *mode.Registry
	Modes() []mode.Code
	ModeParams(name string) ([]mode.Field, error)
	Status() status.Snapshot
	LastPath() string
	Cancel() bool
	Check(req controller.Request) error
	ApplyMeasurement(ctx context.Context, req controller.Request) (controller.Report, error)
}

// ModeInfo describes one technique.
type ModeInfo struct {
	Code        mode.Code    `json:"code"`
	Family      mode.Family  `json:"family"`
	PIDActive   bool         `json:"pid_active"`
	Description string       `json:"description"`
	Params      []mode.Field `json:"params,omitempty"`
}

// MeasurementReply is the body of POST /measurements.
type MeasurementReply struct {
	Report *controller.Report `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Server routes HTTP requests to an Engine.
type Server struct {
	eng Engine

	// background runs are detached from the request that started them
	base context.Context
	bg   sync.WaitGroup
}

// New binds eng. Background measurements run under base.
func New(base context.Context, eng Engine) *Server {
	return &Server{eng: eng, base: base}
}

// Router returns the route table with request logging.
func (s *Server) Router() chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)

	root.Get("/modes", s.listModes)
	root.Get("/modes/{mode}", s.getMode)
	root.Post("/measurements", s.postMeasurement)
	root.Post("/measurements/cancel", s.cancel)
	root.Get("/status", s.getStatus)
	root.Get("/last", s.last)
	root.Get("/last/file", s.lastFile)
	return root
}

// Wait blocks until every background measurement has returned, teardown
// included. Call it after cancelling base and before closing the device.
func (s *Server) Wait() {
	s.bg.Wait()
}

// ---- modes ----

func (s *Server) describe(code mode.Code, withParams bool) (ModeInfo, error) {
	reg := s.eng.Registry()
	name := string(code)
	fam, err := reg.Family(name)
	if err != nil {
		return ModeInfo{}, err
	}
	pid, _ := reg.PIDActive(name)
	desc, _ := reg.Description(name)
	info := ModeInfo{Code: code, Family: fam, PIDActive: pid, Description: desc}
	if withParams {
		info.Params, _ = s.eng.ModeParams(name)
	}
	return info, nil
}

func (s *Server) listModes(w http.ResponseWriter, r *http.Request) {
	codes := s.eng.Modes()
	out := make([]ModeInfo, 0, len(codes))
	for _, c := range codes {
		info, err := s.describe(c, false)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, info)
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) getMode(w http.ResponseWriter, r *http.Request) {
	code, err := s.eng.Registry().Lookup(chi.URLParam(r, "mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	info, err := s.describe(code, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, info)
}

// ---- measurements ----

// postMeasurement runs the request and replies with its report.
// With ?wait=false it replies 202 once the request passed validation and
// the measurement continues in the background.
func (s *Server) postMeasurement(w http.ResponseWriter, r *http.Request) {
	var req controller.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wait := true
	if q := r.URL.Query().Get("wait"); q != "" {
		b, err := strconv.ParseBool(q)
		if err != nil {
			http.Error(w, "wait: "+err.Error(), http.StatusBadRequest)
			return
		}
		wait = b
	}

	if !wait {
		if err := s.eng.Check(req); err != nil {
			respond(w, statusFor(err), MeasurementReply{Error: err.Error()})
			return
		}
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			if _, err := s.eng.ApplyMeasurement(s.base, req); err != nil {
				log.Printf("server: background measurement failed (mode=%s): %v", req.Mode, err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	rep, err := s.eng.ApplyMeasurement(r.Context(), req)
	reply := MeasurementReply{}
	if rep.Experiment != 0 {
		reply.Report = &rep
	}
	if err != nil {
		reply.Error = err.Error()
		respond(w, statusFor(err), reply)
		return
	}
	respond(w, http.StatusOK, reply)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]bool{"cancelled": s.eng.Cancel()})
}

// ---- status / output ----

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.eng.Status()
	respond(w, http.StatusOK, struct {
		status.Snapshot
		Progress float64 `json:"progress"`
	}{snap, snap.Progress()})
}

func (s *Server) last(w http.ResponseWriter, r *http.Request) {
	p := s.eng.LastPath()
	if p == "" {
		http.Error(w, "no measurement yet", http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, map[string]string{"path": p})
}

func (s *Server) lastFile(w http.ResponseWriter, r *http.Request) {
	p := s.eng.LastPath()
	if p == "" {
		http.Error(w, "no measurement yet", http.StatusNotFound)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(p)+`"`)
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// ---- helpers ----

func statusFor(err error) int {
	var (
		unknown *mode.UnknownModeError
		params  *mode.ParameterError
		link    *acquire.LinkExhaustedError
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &params), errors.Is(err, controller.ErrInvalidGain):
		return http.StatusBadRequest
	case errors.As(err, &link):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode reply: %v", err)
	}
}

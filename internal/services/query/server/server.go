// Package server exposes the query gate and prober as a JSON HTTP API under
// /api/.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dbgate/internal/env"
	"dbgate/internal/platform/logging"
	"dbgate/internal/services/query/dispatch"
	"dbgate/internal/services/query/probe"

	"go.uber.org/zap"
)

const (
	notFoundMessage = "SKU not found"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

type Server struct {
	gate   *dispatch.Gate
	prober *probe.Prober
	log    *zap.Logger
	now    func() time.Time
}

func New(gate *dispatch.Gate, prober *probe.Prober, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{gate: gate, prober: prober, log: log, now: time.Now}
}

// Register mounts the API routes on mux. Unmatched /api/ paths get a JSON 404
// so they never fall through to the front end.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query-sku", s.querySKU)
	mux.HandleFunc("POST /api/query", s.query)
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /api/health/{$}", s.health)
	mux.HandleFunc("GET /api/health/{environment}", s.health)
	mux.HandleFunc("GET /api/environments/status", s.environmentsStatus)
	mux.HandleFunc("GET /api/environments", s.environments)
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "not found", "")
	})
}

// Handler returns a mux serving only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) querySKU(w http.ResponseWriter, r *http.Request) {
	var body skuBody
	if err := decodeBody(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.gate.LookupSKU(r.Context(), dispatch.SKURequest{
		SKU:         string(body.SKU),
		Environment: body.Environment,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !res.Found {
		writeFailure(w, http.StatusOK, notFoundMessage, string(res.Environment))
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Data:        res.Rows[0],
		Environment: string(res.Environment),
	})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if err := decodeBody(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	params, err := bindParams(body.Params)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.gate.Query(r.Context(), dispatch.QueryRequest{
		SQL:         body.SQL,
		Params:      params,
		Environment: body.Environment,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var data any = res.Rows
	if res.Exec != nil {
		data = res.Exec
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Data:        data,
		Environment: string(res.Environment),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.gate.Environment(r.PathValue("environment"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, healthReport{Status: "ERROR", Message: err.Error()})
		return
	}

	ctx := r.Context()
	o := s.prober.Probe(ctx, n)
	ts := s.now().UTC().Format(timestampLayout)

	// A probe cut short by the caller says nothing about the database.
	if cerr := context.Cause(ctx); cerr != nil {
		writeJSON(w, http.StatusInternalServerError, healthReport{
			Status:      "ERROR",
			Timestamp:   ts,
			Environment: string(n),
			Database:    "Error",
			Message:     cerr.Error(),
		})
		return
	}

	rep := healthReport{
		Status:      "OK",
		Timestamp:   ts,
		Environment: string(n),
		Database:    "Connected",
		Message:     o.Message,
	}
	if !o.Success {
		rep.Status = "ERROR"
		rep.Database = "Disconnected"
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) environmentsStatus(w http.ResponseWriter, r *http.Request) {
	res := s.prober.ProbeAll(r.Context())
	out := make(map[string]probe.Outcome, len(res))
	for n, o := range res {
		out[string(n)] = o
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) environments(w http.ResponseWriter, _ *http.Request) {
	names := env.All()
	list := environmentList{
		Environments: make([]string, len(names)),
		Default:      string(s.gate.Default()),
	}
	for i, n := range names {
		list.Environments[i] = string(n)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeFailure(w, http.StatusRequestEntityTooLarge, err.Error(), "")
		return
	}
	writeFailure(w, http.StatusBadRequest, err.Error(), "")
}

// fail maps gate errors onto responses: validation is the caller's fault,
// everything else already carries its environment and has been logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if dispatch.IsValidation(err) {
		writeFailure(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	var ee *dispatch.ExecError
	if errors.As(err, &ee) {
		writeFailure(w, http.StatusInternalServerError, "query failed: "+ee.Error(), string(ee.Env))
		return
	}

	logging.For(r.Context(), s.log).Error("unexpected gate error",
		zap.String("http.path", r.URL.Path),
		zap.Error(err),
	)
	writeFailure(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
}

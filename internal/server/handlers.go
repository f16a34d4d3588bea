package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/invocation-gateway/pkg/dispatcher"
	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/invoker"
	"github.com/morezero/invocation-gateway/pkg/provider"
	"github.com/morezero/invocation-gateway/pkg/retrieval"
)

const maxInvokeBody = 1 << 20

// HealthOutput is the health report served on /health and by the health method.
type HealthOutput struct {
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	Uptime        string       `json:"uptime"`
	Providers     int          `json:"providers"`
	StoredResults int          `json:"storedResults"`
	Checks        HealthChecks `json:"checks"`
}

// HealthChecks reports each dependency. Optional backends are omitted when not configured.
type HealthChecks struct {
	Comms    bool  `json:"comms"`
	Database *bool `json:"database,omitempty"`
	Redis    *bool `json:"redis,omitempty"`
}

// Health checks COMMS and the optional backends.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Providers:     s.catalog.Len(),
		StoredResults: s.store.Len(),
	}

	out.Checks.Comms = s.nc != nil && s.nc.IsConnected()
	if !out.Checks.Comms {
		out.Status = "unhealthy"
	}
	if s.pool != nil {
		ok := s.pool.Ping(ctx) == nil
		out.Checks.Database = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	if s.rdb != nil {
		ok := s.rdb.Ping(ctx).Err() == nil
		out.Checks.Redis = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("POST /v1/invoke", s.handleInvoke)
	mux.HandleFunc("GET /v1/results/{id}", s.handleGetResult)
	mux.HandleFunc("DELETE /v1/results/{id}", s.handleDeleteResult)
	mux.HandleFunc("GET /v1/providers", s.handleProviders)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invocation.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dispatcher.CodeInvalidArgument, fmt.Sprintf("Failed to parse invoke body: %v", err))
		return
	}

	id, err := s.invoker.Submit(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, invoker.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, dispatcher.CodeInvalidArgument, err.Error())
		case errors.Is(err, invoker.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, dispatcher.CodeUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, dispatcher.CodeInternal, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, &dispatcher.InvokeAccepted{CorrelationID: id, Accepted: true})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	input := &retrieval.GetResultInput{CorrelationID: r.PathValue("id")}
	if raw := r.URL.Query().Get("clear"); raw != "" {
		c, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, dispatcher.CodeInvalidArgument, "clear must be a boolean")
			return
		}
		input.Clear = c
	}

	result, err := s.results.Get(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadRequest, dispatcher.CodeInvalidArgument, err.Error())
		return
	}
	status := http.StatusOK
	if !result.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.results.Discard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, dispatcher.CodeInvalidArgument, err.Error())
		return
	}
	if !result.Found {
		writeJSON(w, http.StatusNotFound, result)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &dispatcher.ProvidersResult{Providers: s.catalog.Describe()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.Health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &dispatcher.ErrorDetail{Code: code, Message: message, Retryable: status >= 500})
}

// homePageTemplate is the HTML for the gateway home page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Invocation Gateway</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Invocation Gateway</h1>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Uptime: {{.Health.Uptime}}</p>
    <p>Stored results: <span class="stat">{{.Health.StoredResults}}</span> of {{.Capacity}}</p>
  </section>

  <section>
    <h2>Providers</h2>
    {{if not .Providers}}
    <p>No providers registered.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Provider</th><th>Version</th><th>Operations</th><th>Description</th></tr>
      </thead>
      <tbody>
        {{range .Providers}}
        <tr>
          <td>{{.Name}}</td>
          <td>{{.Version}}</td>
          <td>{{range $i, $op := .Operations}}{{if $i}}, {{end}}{{$op}}{{end}}</td>
          <td>{{.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health    *HealthOutput
	Capacity  int
	Providers []provider.Descriptor
}

// handleHome returns an HTTP handler for the gateway home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health:    s.Health(ctx),
			Capacity:  s.store.Capacity(),
			Providers: s.catalog.Describe(),
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		buf.WriteTo(w)
	}
}

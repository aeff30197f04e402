// Package debug provides handler support for the debugging endpoints.
package debug

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/arl/statsviz"
)

// Mux registers all the debug routes from the standard library into a new mux
// bypassing the use of the DefaultServerMux. Using the DefaultServerMux would
// be a security risk since a dependency could inject a handler into our
// service without us knowing it.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	// Register only fails on route collision; the mux is fresh.
	_ = statsviz.Register(mux)

	mux.HandleFunc("/v1/liveness", liveness)
	mux.HandleFunc("/v1/readiness", readiness)

	return mux
}

type probeResponse struct {
	Status string `json:"status"`
}

func liveness(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, probeResponse{Status: "ok"})
}

func readiness(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, probeResponse{Status: "ready"})
}

func writeProbe(w http.ResponseWriter, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

package observability

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strings"

	"automated-kingdom/server/logging"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// Wrap serves /debug/metrics from metrics and, when enabled, the pprof
// handlers under /debug/pprof/. Everything else goes to next.
func Wrap(next http.Handler, cfg Config, metrics *logging.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		values := map[string]uint64{}
		if metrics != nil {
			values = metrics.Snapshot()
		}
		data, err := json.Marshal(values)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/debug/") {
			mux.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

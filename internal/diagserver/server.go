// Package diagserver exposes the tracker's operator diagnostics over a
// loopback/USB-network HTTP link for bench debugging. It is a maintenance
// surface, not the device's primary UI (that raster display is external
// and out of scope per spec.md §1) — analogous to the teacher's
// internal/serialmux AttachAdminRoutes idiom.
package diagserver

import (
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/proxtrack/pt/internal/diagstore"
	"github.com/proxtrack/pt/internal/httputil"
	"github.com/proxtrack/pt/internal/monitoring"
	"github.com/proxtrack/pt/internal/tracker"
)

// Server wires a DeviceTracker and a diagnostics Store to a set of
// debug-only HTTP routes.
type Server struct {
	tracker *tracker.DeviceTracker
	store   *diagstore.Store
}

// NewServer returns a Server bound to dt and store. store may be nil, in
// which case the /debug/tailsql route is not mounted.
func NewServer(dt *tracker.DeviceTracker, store *diagstore.Store) *Server {
	return &Server{tracker: dt, store: store}
}

// AttachAdminRoutes mounts the debug routes on mux, following the
// teacher's internal/serialmux pattern: everything lives under
// tsweb.Debugger so it is reachable only over localhost/Tailscale, never
// on a public listener.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("snapshot", "dump the current entity snapshot as JSON", s.handleSnapshot)
	debug.HandleFunc("counters", "dump operator diagnostics counters", s.handleCounters)
	debug.HandleFunc("watchlist", "dump the current watchlist document", s.handleWatchlist)

	if s.store == nil {
		return
	}
	tsql, err := tailsql.NewServer(tailsql.Options{RoutePrefix: "/debug/tailsql/"})
	if err != nil {
		monitoring.Logf("diagserver: tailsql server init failed: %v", err)
		return
	}
	tsql.SetDB("sqlite://diagnostics.db", s.store.DB(), &tailsql.DBOptions{
		Label: "Proximity Tracker Diagnostics",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.BuildSnapshot(tracker.MaxTracks+tracker.MaxAnchors, 0)
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.tracker.Counters())
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.tracker.OutputLists()
	httputil.WriteJSONOK(w, doc)
}

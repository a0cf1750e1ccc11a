package journal

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/cybot/internal/httputil"
)

const defaultEventLimit = 100

// AttachAdminRoutes mounts tailsql over the journal and a backup download on
// the debug index.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(j.path), j.DB, &tailsql.DBOptions{
		Label: "cybot journal",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.KVFunc("journal run", func() any { return j.RunID() })

	debug.HandleFunc("journal/runs", "every run in the journal as JSON", func(w http.ResponseWriter, r *http.Request) {
		runs, err := j.Runs(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, runs)
	})

	// ?run=<id> defaults to the current run; ?limit=N keeps the newest N.
	debug.HandleFunc("journal/events", "recent events of the current run as JSON", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		limit, err := httputil.IntParam(r, "limit", defaultEventLimit)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		runID := r.URL.Query().Get("run")
		if runID == "" {
			runID = j.RunID()
		}
		events, err := j.Events(r.Context(), runID)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		if events == nil {
			events = []Event{}
		}
		httputil.WriteJSONOK(w, events)
	})

	debug.Handle("journal/backup", "Create and download a backup of the journal now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("cybot-journal-%d.db", j.clock.Now().UnixNano()))
		if _, err := j.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				logJournal("failed to remove backup file: %v", err)
			}
		}()

		f, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, f); err != nil {
			logJournal("backup copy: %v", err)
		}
	}))
	return nil
}

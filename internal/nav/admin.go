package nav

import (
	"bytes"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/cybot/internal/httputil"
	"github.com/banshee-data/cybot/internal/scanplot"
)

// AttachAdminRoutes exposes the controller state and the last sweep on the
// debug index.
func (c *Controller) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("nav state", func() any { return c.Status().State })
	debug.KVFunc("pose", func() any { return c.Status().Pose.String() })

	debug.HandleFunc("nav/state", "controller state as JSON", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, c.Status())
	})

	debug.HandleFunc("nav/sweep", "chart of the last sweep", func(w http.ResponseWriter, r *http.Request) {
		sweep := c.LastSweep()
		if len(sweep.Raw) == 0 {
			httputil.NotFound(w, "no sweep yet")
			return
		}
		st := c.Status()
		var buf bytes.Buffer
		if err := scanplot.RenderChart(&buf, fmt.Sprintf("cycle %d, pose %s", st.Cycles, st.Pose), sweep.Raw, sweep.Filtered); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleSilentFunc("nav/sweep.png", func(w http.ResponseWriter, r *http.Request) {
		sweep := c.LastSweep()
		if len(sweep.Raw) == 0 {
			httputil.NotFound(w, "no sweep yet")
			return
		}
		var buf bytes.Buffer
		if err := scanplot.WritePNG(&buf, "Last sweep", sweep.Raw, sweep.Filtered); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})
}

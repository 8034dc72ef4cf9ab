package web

import (
	"encoding/json"
	"net/http"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/editor"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// ErrorJSON is returned for rejected requests.
type ErrorJSON struct {
	Error string `json:"error"`
}

// ParamJSON is the response to a parameter action.
type ParamJSON struct {
	Param status.ParamJSON `json:"param"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// handleParam applies an editor action, e.g. POST /params/brew_setpoint/increment.
func (s *Server) handleParam(w http.ResponseWriter, r *http.Request) {
	param, ok := telemetry.ParseParam(r.PathValue("param"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorJSON{Error: "unknown parameter " + r.PathValue("param")})
		return
	}
	action, ok := editor.ParseAction(r.PathValue("action"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: "unknown action " + r.PathValue("action")})
		return
	}
	if err := s.tracker.Apply(param, action); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: err.Error()})
		return
	}

	sj := status.Build(s.tracker.Snapshot())
	for _, p := range sj.Status.Params {
		if p.Name == string(param) {
			writeJSON(w, http.StatusOK, ParamJSON{Param: p})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, ErrorJSON{Error: "parameter missing from status"})
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hikumo-bridge/internal/house"
)

// handleListDevices returns a snapshot of every known device, sorted by id.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.house.Devices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device snapshot, including its dirty flag.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.house.Device(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, house.ErrUnknownDevice) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d.Snapshot())
}

// handleListCommands returns the push journal for a device, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 20, max 200)
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "command journal is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.house.Device(id); err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading command journal failed", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read command journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"commands": entries, "count": len(entries)})
}

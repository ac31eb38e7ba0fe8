package web

import (
	"net/http"
)

func (s *Server) handleShowroom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.showroom.GetShowroomData(r.Context()))
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.showroom.GetVehicles(r.Context()))
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := s.showroom.GetVehicle(r.Context(), id)
	if err != nil {
		s.writeError(w, err, "get vehicle", "vehicle_id", id)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.showroom.DeleteVehicle(r.Context(), id); err != nil {
		s.writeError(w, err, "delete vehicle", "vehicle_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	summary, err := s.showroom.Refresh(r.Context())
	if err != nil {
		s.writeError(w, err, "refresh inventory")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

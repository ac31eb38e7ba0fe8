package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vbonduro/showroom/internal/blobstore"
	"github.com/vbonduro/showroom/internal/domain"
	"github.com/vbonduro/showroom/internal/service"
)

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	list, err := s.showroom.ListMedia(r.Context())
	if err != nil {
		s.writeError(w, err, "list media")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUnattachedMedia(w http.ResponseWriter, r *http.Request) {
	list, err := s.showroom.GetUnattachedMedia(r.Context())
	if err != nil {
		s.writeError(w, err, "list unattached media")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createMediaRequest struct {
	URL       string           `json:"url"`
	Type      domain.MediaType `json:"type"`
	VehicleID *string          `json:"vehicleId"`
}

// handleCreateMedia accepts either a multipart form with a "file" part and an
// optional "vehicleId" field, or a JSON body referencing an existing URL.
func (s *Server) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMediaRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			badRequest(w, "failed to parse form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file required")
			return
		}
		defer closeWithLog(file, "media file", s.logger)

		data, err := io.ReadAll(file)
		if err != nil {
			s.writeError(w, err, "read media upload")
			return
		}
		mimeType, ok := allowedMediaMIME(data)
		if !ok {
			badRequest(w, "unsupported media format")
			return
		}
		req.Data = data
		req.MimeType = mimeType
		if v := strings.TrimSpace(r.FormValue("vehicleId")); v != "" {
			req.VehicleID = &v
		}
	} else {
		var body createMediaRequest
		if err := decodeJSON(r, &body); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if strings.TrimSpace(body.URL) == "" || body.Type == "" {
			badRequest(w, "url and type are required")
			return
		}
		req.URL = body.URL
		req.Type = body.Type
		req.VehicleID = body.VehicleID
	}

	m, err := s.showroom.CreateMedia(r.Context(), req)
	if err != nil {
		s.writeError(w, err, "create media")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type attachMediaRequest struct {
	VehicleID *string `json:"vehicleId"`
}

// handleAttachMedia pairs media with a vehicle; a null vehicleId detaches it.
func (s *Server) handleAttachMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body attachMediaRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	m, err := s.showroom.AttachMedia(r.Context(), id, body.VehicleID)
	if err != nil {
		s.writeError(w, err, "attach media", "media_id", id)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.showroom.DeleteMedia(r.Context(), id); err != nil {
		s.writeError(w, err, "delete media", "media_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReorderMedia always answers 501 without reading the body.
func (s *Server) handleReorderMedia(w http.ResponseWriter, r *http.Request) {
	err := s.showroom.ReorderMedia(r.Context(), nil)
	s.writeError(w, err, "reorder media")
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	reader, mimeType, err := s.blobs.Get(r.Context(), key)
	if errors.Is(err, blobstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		s.writeError(w, err, "get blob", "storage_key", key)
		return
	}
	defer closeWithLog(reader, "blob reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write blob failed", "storage_key", key, "error", err)
	}
}

package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/showroom/internal/companion"
	"github.com/vbonduro/showroom/internal/domain"
)

const maxUploadSize = 50 * 1024 * 1024 // 50 MB

// allowedMediaTypes is the set of MIME types accepted for uploaded media.
// net/http.DetectContentType handles JPEG, PNG, GIF, MP4 and WebM via
// magic-byte sniffing. WebP is detected separately because the WHATWG sniff
// spec (and therefore the stdlib) does not include a WebP signature.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"video/mp4":  true,
	"video/webm": true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedMediaMIME returns the detected MIME type and true if the data is an
// accepted image or video format, or ("", false) otherwise.
func allowedMediaMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedMediaTypes[mime] {
		return mime, true
	}
	return "", false
}

// allowedImageMIME is allowedMediaMIME restricted to still images.
func allowedImageMIME(data []byte) (string, bool) {
	mime, ok := allowedMediaMIME(data)
	if !ok || !strings.HasPrefix(mime, "image/") {
		return "", false
	}
	return mime, true
}

type uploadResponse struct {
	Success bool                       `json:"success"`
	Upload  *domain.WebCompanionUpload `json:"upload"`
}

// handleRegisterUpload accepts the companion app's multipart upload: an
// "image" part, a "stockNumber" field and optional "uploadId" and
// "imageIndex" fields.
func (s *Server) handleRegisterUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequest(w, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image file required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, err, "read companion upload")
		return
	}

	mimeType, ok := allowedImageMIME(data)
	if !ok {
		badRequest(w, "unsupported image format")
		return
	}

	req := companion.RegisterRequest{
		UploadID:         strings.TrimSpace(r.FormValue("uploadId")),
		StockNumber:      strings.TrimSpace(r.FormValue("stockNumber")),
		OriginalFilename: header.Filename,
		MimeType:         mimeType,
		Data:             data,
	}
	if v := r.FormValue("imageIndex"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 {
			badRequest(w, "invalid imageIndex")
			return
		}
		req.ImageIndex = &idx
	}

	upload, err := s.companion.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, err, "register upload", "stock_number", req.StockNumber)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Success: true, Upload: upload})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	upload, err := s.companion.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err, "get upload", "upload_id", id)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	stock := strings.TrimSpace(r.URL.Query().Get("stockNumber"))
	uploads, err := s.companion.ListByStock(r.Context(), stock)
	if err != nil {
		s.writeError(w, err, "list uploads", "stock_number", stock)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

type completeRequest struct {
	UploadID string `json:"uploadId"`
	companion.Patch
}

// handleCompleteUpload is the processor's callback reporting the outcome of
// an upload.
func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var body completeRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.UploadID) == "" {
		badRequest(w, "uploadId is required")
		return
	}

	upload, err := s.companion.Complete(r.Context(), body.UploadID, body.Patch)
	if err != nil {
		s.writeError(w, err, "complete upload", "upload_id", body.UploadID)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Upload: upload})
}

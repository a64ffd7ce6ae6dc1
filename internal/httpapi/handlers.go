package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"cafe-pos/internal/archive"
	"cafe-pos/internal/backup"
	"cafe-pos/internal/settings"

	"github.com/gorilla/mux"
)

// Export attachments are named cms-backup-<timestamp>.json
const backupFilenameLayout = "2006-01-02T15-04-05Z"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := settings.GetOrInit(r.Context(), s.deps.Store)
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Backup.Export(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to create backup")
		return
	}
	body, err := p.Encode()
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to create backup")
		return
	}

	name := fmt.Sprintf("cms-backup-%s.json", s.now().UTC().Format(backupFilenameLayout))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleRestore accepts the snapshot as multipart field "file", or as a raw
// JSON body
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRestoreBytes)

	raw, err := s.readRestoreBody(r)
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to read backup file")
		return
	}

	summary, err := s.deps.Backup.Restore(r.Context(), raw)
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to restore backup")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) readRestoreBody(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, backup.NewValidationError("Backup file must be sent as multipart form data", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, backup.NewValidationError("Backup file is required in 'file' field", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

type createArchiveRequest struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}
	list, err := s.deps.Archives.List(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to list archives")
		return
	}
	if list == nil {
		list = []*archive.Metadata{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}

	var req createArchiveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	p, err := s.deps.Backup.Export(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to create backup")
		return
	}
	raw, err := p.Encode()
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to create backup")
		return
	}

	meta, err := s.deps.Archives.Create(r.Context(), raw, archive.CreateOptions{
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to store archive")
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleRestoreArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}

	p, _, err := s.deps.Archives.LoadPayload(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to load archive")
		return
	}
	summary, err := s.deps.Backup.RestorePayload(r.Context(), p)
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to restore backup")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDeleteArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}
	if err := s.deps.Archives.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, s.logger, err, "Failed to delete archive")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) archivesEnabled(w http.ResponseWriter) bool {
	if s.deps.Archives == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Archive storage is not configured")
		return false
	}
	return true
}

type whatsAppTestRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (s *Server) handleWhatsAppTest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		writeMessage(w, http.StatusServiceUnavailable, "WhatsApp is not configured")
		return
	}

	var req whatsAppTestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Phone == "" {
		writeMessage(w, http.StatusBadRequest, "phone is required")
		return
	}

	res, err := s.deps.Notifier.SendTest(r.Context(), req.Phone, req.Message)
	if err != nil {
		writeError(w, r, s.logger, err, "Failed to send test message")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

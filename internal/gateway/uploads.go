package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/gateway/metrics"
	"github.com/trungha/formgate/internal/infra/storage"
)

// maxMultipartMemory bounds how much of a multipart body is buffered in
// memory; only headers matter here, file contents are never stored.
const maxMultipartMemory = 32 << 20

type filesResponse struct {
	Files          []domain.FileMeta `json:"files"`
	CanAddMore     bool              `json:"canAddMore"`
	RemainingSlots int               `json:"remainingSlots"`
	Error          string            `json:"error,omitempty"`
}

func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	session, err := s.sessions.Get(id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return session, true
}

func (s *Server) filesResponseFor(session *Session) filesResponse {
	resp := filesResponse{
		Files:          session.Validator.Files(),
		CanAddMore:     session.Validator.CanAddMoreFiles(),
		RemainingSlots: session.Validator.RemainingSlots(),
	}
	if err := session.Validator.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Create(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session.Meta)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Meta)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.filesResponseFor(session))
}

// handleAddFiles turns each part of the "files" multipart field into an
// admission candidate. Candidates that pass are admitted even when
// others fail; only a fully rejected call gets a 422.
func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no files in request")
		return
	}

	candidates := make([]domain.FileMeta, len(parts))
	for i, part := range parts {
		candidates[i] = domain.FileMeta{
			Name:         part.Filename,
			Size:         part.Size,
			Type:         part.Header.Get("Content-Type"),
			LastModified: time.Now(),
		}
	}

	before := len(session.Validator.Files())
	admissionErr := session.Validator.AddFiles(candidates)
	admitted := len(session.Validator.Files()) - before
	if admitted > 0 {
		metrics.FilesAdmittedTotal.Add(float64(admitted))
	}

	resp := s.filesResponseFor(session)
	if admissionErr != nil {
		resp.Error = admissionErr.Error()
		if admitted == 0 {
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoveFile removes by index. An out-of-range index is not an
// error: the list is simply returned unchanged.
func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file index")
		return
	}

	session.Validator.RemoveFile(index)
	writeJSON(w, http.StatusOK, s.filesResponseFor(session))
}

func (s *Server) handleClearFiles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	session.Validator.ClearFiles()
	writeJSON(w, http.StatusOK, s.filesResponseFor(session))
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	s.setSessionStatus(w, r, domain.SessionStatusCompleted)
}

func (s *Server) handleAbortSession(w http.ResponseWriter, r *http.Request) {
	s.setSessionStatus(w, r, domain.SessionStatusAborted)
}

func (s *Server) setSessionStatus(
	w http.ResponseWriter,
	r *http.Request,
	status domain.SessionStatus,
) {
	session, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := s.sessions.SetStatus(r.Context(), session.Meta.ID, status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session.Meta)
}

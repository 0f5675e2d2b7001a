package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/minhle/quizrag/internal/index"
)

// ownerHeader carries the caller's account id. Authentication itself happens
// upstream of this service.
const ownerHeader = "X-Owner-ID"

// maxUploadBytes bounds a single multipart upload.
const maxUploadBytes = 50 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// receiveUpload stores the request's "file" part under a fresh scratch
// directory, keeping the client's base file name since the namespace is
// derived from it. The caller removes the directory when done.
func (s *Server) receiveUpload(r *http.Request) (path string, cleanup func(), err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New(`missing "file" part`)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", nil, errors.New("invalid file name")
	}

	dir, err := os.MkdirTemp(s.uploadDir, "upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	path = filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header")
		return
	}

	path, cleanup, err := s.receiveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	result, err := s.ingestor.IngestChat(r.Context(), path, owner)
	if err != nil {
		s.logger.Error("ingest failed", "owner", owner, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, index.ErrInvalidKey) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	Query    string `json:"query"`
	Document string `json:"document,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	// Document-scoped queries search the owner's namespace; without a
	// document the query falls back to the shared global namespace.
	key := index.GlobalKey
	if req.Document != "" {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header for document-scoped query")
			return
		}
		var err error
		key, err = index.NewKey(owner, req.Document)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	answer, err := s.answerer.Answer(r.Context(), req.Query, key)
	if err != nil {
		s.logger.Error("chat failed", "namespace", key.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header")
		return
	}

	path, cleanup, err := s.receiveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	result, err := s.ingestor.GenerateQuiz(r.Context(), path, owner)
	if err != nil {
		s.logger.Error("quiz generation failed", "owner", owner, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, index.ErrInvalidKey) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flatconnect/internal/engine"
)

const (
	defaultMaxUpload  = 20 << 20
	defaultFormMemory = 8 << 20
)

// Multipart routes live on chi directly: both accept either a multipart form
// or a JSON body.
func registerUploads(r chi.Router, s *handlers) {
	r.Post("/issues/create/", s.createIssue)
	r.Post("/issues/{id}/status/", s.updateStatus)
}

type form struct {
	values map[string]string
	files  map[string][]engine.Upload
}

func (f form) get(k string) string { return f.values[k] }

func (s *handlers) readForm(w http.ResponseWriter, r *http.Request) (form, error) {
	limit := s.maxUpload
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	f := form{values: map[string]string{}, files: map[string][]engine.Upload{}}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return f, err
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				f.values[k] = t
			case float64:
				f.values[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case nil:
			default:
				f.values[k] = fmt.Sprint(t)
			}
		}
		return f, nil
	}
	mem := s.formMemory
	if mem <= 0 {
		mem = defaultFormMemory
	}
	if err := r.ParseMultipartForm(mem); err != nil {
		return f, err
	}
	// uploads are read into memory below; spilled temp files go with the request
	defer r.MultipartForm.RemoveAll()
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			f.values[k] = vs[0]
		}
	}
	for k, hs := range r.MultipartForm.File {
		for _, h := range hs {
			u, err := readUpload(h)
			if err != nil {
				return f, err
			}
			f.files[k] = append(f.files[k], u)
		}
	}
	return f, nil
}

func readUpload(h *multipart.FileHeader) (engine.Upload, error) {
	file, err := h.Open()
	if err != nil {
		return engine.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return engine.Upload{}, err
	}
	return engine.Upload{Filename: h.Filename, ContentType: h.Header.Get("Content-Type"), Data: data}, nil
}

func (s *handlers) formError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit", nil))
		return
	}
	respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "Malformed request body: "+err.Error(), nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *handlers) createIssue(w http.ResponseWriter, r *http.Request) {
	p, herr := principalFromContext(r.Context())
	if herr != nil {
		respondStatusError(w, herr)
		return
	}
	f, err := s.readForm(w, r)
	if err != nil {
		s.formError(w, err)
		return
	}
	res, err := s.engine.CreateIssue(r.Context(), p, engine.CreateIssueInput{
		Title:       f.get("title"),
		Description: f.get("description"),
		Category:    f.get("category"),
		Priority:    f.get("priority"),
		Latitude:    f.get("latitude"),
		Longitude:   f.get("longitude"),
		Images:      f.files["image_files"],
	})
	if err != nil {
		respondStatusError(w, s.handleError(r.Context(), err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	p, herr := principalFromContext(r.Context())
	if herr != nil {
		respondStatusError(w, herr)
		return
	}
	f, err := s.readForm(w, r)
	if err != nil {
		s.formError(w, err)
		return
	}
	msg, err := s.engine.UpdateStatus(r.Context(), p, chi.URLParam(r, "id"), f.get("status"), f.files["photos"])
	if err != nil {
		respondStatusError(w, s.handleError(r.Context(), err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": msg})
}

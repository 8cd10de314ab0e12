package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipart framing allowance on top of the document limit
const multipartOverhead = 1 << 20

type documentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type,omitempty"`
	OwnerID     string    `json:"ownerId"`
	KeyVersion  int       `json:"keyVersion"`
	CreatedAt   time.Time `json:"createdAt"`
}

type auditResponse struct {
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId,omitempty"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"createdAt"`
}

type shareRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=owner editor viewer"`
}

// UploadDocument handles POST /vault/docs
//
// The body is multipart/form-data with a "file" part and optional "name",
// "description" and "type" fields.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		respondError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	mimeType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	res, err := s.vault.Upload(r.Context(), currentUser(r), services.UploadInput{
		Name:        name,
		MimeType:    mimeType,
		Description: r.FormValue("description"),
		Type:        r.FormValue("type"),
		Content:     content,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        res.ID,
		"createdAt": res.CreatedAt,
	})
}

// ReadDocument handles GET /vault/docs/{id}?download=0|1
func (s *Server) ReadDocument(w http.ResponseWriter, r *http.Request) {
	mode := services.ReadView
	disposition := "inline"
	if q := r.URL.Query().Get("download"); q != "" {
		download, err := strconv.ParseBool(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, "download must be 0 or 1")
			return
		}
		if download {
			mode = services.ReadDownload
			disposition = "attachment"
		}
	}

	doc, err := s.vault.Read(r.Context(), chi.URLParam(r, "id"), currentUser(r), mode)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Content)
}

// DeleteDocument handles DELETE /vault/docs/{id}
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Delete(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /vault/docs
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.vault.List(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{
			ID:          d.ID,
			Name:        d.Name,
			MimeType:    d.MimeType,
			SizeBytes:   d.SizeBytes,
			Description: d.Description,
			Type:        d.Type,
			OwnerID:     d.OwnerID,
			KeyVersion:  d.KeyVersion,
			CreatedAt:   d.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// DocumentAudit handles GET /vault/docs/{id}/audit
func (s *Server) DocumentAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.vault.Audit(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			DocumentID: e.DocumentID,
			UserID:     e.UserID,
			Action:     string(e.Action),
			CreatedAt:  e.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// ShareDocument handles POST /vault/docs/{id}/access
func (s *Server) ShareDocument(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.vault.Share(r.Context(), chi.URLParam(r, "id"), currentUser(r), req.UserID, models.Role(req.Role))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

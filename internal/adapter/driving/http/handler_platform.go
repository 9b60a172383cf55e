package httphandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// ListPlatforms returns all connected platforms.
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.platforms.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list platforms", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]PlatformResponse, 0, len(platforms))
	for _, p := range platforms {
		resp = append(resp, toPlatformResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddPlatform connects a new platform account. A missing id is generated and
// a missing client id defaults to the platform id.
func (h *Handler) AddPlatform(w http.ResponseWriter, r *http.Request) {
	var req PlatformRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pt := model.PlatformType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !pt.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform type")
		return
	}

	p := model.Platform{
		ID:        strings.TrimSpace(req.ID),
		Type:      pt,
		ClientID:  strings.TrimSpace(req.ClientID),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: h.now().UTC(),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ClientID == "" {
		p.ClientID = p.ID
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	existing, err := h.platforms.Get(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("failed to look up platform", "platform_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "platform already exists")
		return
	}

	if err := h.platforms.Add(r.Context(), p); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			writeError(w, http.StatusConflict, "platform already exists")
			return
		}
		h.logger.Error("failed to add platform", "platform_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toPlatformResponse(p))
}

// loadPlatform returns the platform named in the path, writing a 404 or 500
// and returning nil when it cannot be used.
func (h *Handler) loadPlatform(w http.ResponseWriter, r *http.Request) *model.Platform {
	id := r.PathValue("id")
	p, err := h.platforms.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get platform", "platform_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "platform not found")
		return nil
	}
	return p
}

// PutCredentials replaces the stored credentials of a platform and drops any
// adapter session bound to the old ones.
func (h *Handler) PutCredentials(w http.ResponseWriter, r *http.Request) {
	p := h.loadPlatform(w, r)
	if p == nil {
		return
	}

	var data map[string]string
	if err := decodeJSON(r, &data, false); err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.credentials.Store(r.Context(), p.ID, data); err != nil {
		h.logger.Error("failed to store credentials", "platform_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.exec.Invalidate(r.Context(), p.ID)

	writeJSON(w, http.StatusOK, credentialStatus(*p, data))
}

// DeleteCredentials removes the stored credentials of a platform.
func (h *Handler) DeleteCredentials(w http.ResponseWriter, r *http.Request) {
	p := h.loadPlatform(w, r)
	if p == nil {
		return
	}

	if err := h.credentials.Delete(r.Context(), p.ID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "credentials not found")
			return
		}
		h.logger.Error("failed to delete credentials", "platform_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.exec.Invalidate(r.Context(), p.ID)

	w.WriteHeader(http.StatusNoContent)
}

// CredentialStatus reports which required fields are stored for a platform.
func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	p := h.loadPlatform(w, r)
	if p == nil {
		return
	}

	data, err := h.credentials.Get(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("failed to read credentials", "platform_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, credentialStatus(*p, data))
}

func credentialStatus(p model.Platform, data map[string]string) CredentialStatusResponse {
	valid, missing := application.ValidateFields(p.Type, data)
	if missing == nil {
		missing = []string{}
	}

	fields := make(map[string]bool, len(data))
	for _, name := range model.RequiredCredentialFields(p.Type) {
		fields[name] = false
	}
	for name, value := range data {
		fields[name] = value != ""
	}

	return CredentialStatusResponse{
		PlatformID: p.ID,
		Configured: data != nil,
		Valid:      valid,
		Fields:     fields,
		Missing:    missing,
	}
}

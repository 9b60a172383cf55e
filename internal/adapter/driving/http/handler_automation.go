package httphandler

import (
	"net/http"
	"strings"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// SaveAutomation creates or replaces an automation definition.
func (h *Handler) SaveAutomation(w http.ResponseWriter, r *http.Request) {
	var req AutomationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "automation has no actions")
		return
	}
	for _, a := range req.Actions {
		if !a.Type.Valid() || strings.TrimSpace(a.Platform) == "" {
			writeError(w, http.StatusBadRequest, "invalid automation action")
			return
		}
	}

	trigger := model.TriggerType(req.TriggerType)
	if trigger == "" {
		trigger = model.TriggerManual
	}

	automation := model.Automation{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		TriggerType: trigger,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		IsActive:    req.IsActive,
		CreatedAt:   h.now().UTC(),
	}
	if err := h.automations.Save(r.Context(), automation); err != nil {
		h.logger.Error("failed to save automation", "automation_id", automation.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerAutomation fires an automation manually and returns the ids of the
// submitted tasks.
func (h *Handler) TriggerAutomation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ids, err := h.engine.HandleManualTrigger(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "failed to trigger automation", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, TriggerResponse{AutomationID: id, TaskIDs: ids})
}

package handler

import (
	"net/http"

	"printer-fieldops/internal/model"
	"printer-fieldops/internal/service"
)

// FieldHandler serves the HMAC-signed device routes.
type FieldHandler struct {
	service *service.FieldService
}

func NewFieldHandler(service *service.FieldService) *FieldHandler {
	return &FieldHandler{service: service}
}

func (h *FieldHandler) ListInstallations(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListInstallations(r.Context(), parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, nil)
}

func (h *FieldHandler) CreateInstallation(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateInstallationRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.service.CreateInstallation(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created, nil)
}

func (h *FieldHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	caller, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CreateIncidentRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	incident, err := h.service.ReportIncident(r.Context(), caller, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, incident, nil)
}

func (h *FieldHandler) PhotoUploadURL(w http.ResponseWriter, r *http.Request) {
	var payload model.PhotoUploadRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	url, err := h.service.PhotoUploadURL(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, url, nil)
}

type CredentialsHandler struct {
	service *service.CredentialService
}

func NewCredentialsHandler(service *service.CredentialService) *CredentialsHandler {
	return &CredentialsHandler{service: service}
}

func (h *CredentialsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Masked(), nil)
}

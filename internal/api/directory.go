package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
)

// DirectoryHandler handles institution and employee endpoints.
type DirectoryHandler struct {
	store *directory.Store
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(s *directory.Store) *DirectoryHandler {
	return &DirectoryHandler{store: s}
}

// InstitutionRequest names an institution.
type InstitutionRequest struct {
	Name string `json:"institution_name"`
}

// EmployeesRequest adds employees keyed by national id.
type EmployeesRequest struct {
	Employees map[string]directory.Employee `json:"employees"`
}

// List handles GET /institutions.
func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.store.ListInstitutions()
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"institutions": institutions})
}

// Get handles GET /institutions/{name}.
func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.store.GetInstitution(chi.URLParam(r, "name"))
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"institution": inst})
}

// Create handles POST /institutions.
func (h *DirectoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req InstitutionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.AddInstitution(req.Name); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Institution added successfully!"})
}

// Rename handles PUT /institutions/{name}.
func (h *DirectoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req InstitutionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.RenameInstitution(chi.URLParam(r, "name"), req.Name); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Institution name updated successfully!"})
}

// Delete handles DELETE /institutions/{name}.
func (h *DirectoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteInstitution(chi.URLParam(r, "name")); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Institution deleted successfully!"})
}

// AddEmployees handles POST /institutions/{name}/employees.
func (h *DirectoryHandler) AddEmployees(w http.ResponseWriter, r *http.Request) {
	var req EmployeesRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.AddEmployees(chi.URLParam(r, "name"), req.Employees); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employees added successfully!"})
}

// UpdateEmployee handles PUT /institutions/{name}/employees/{id}.
func (h *DirectoryHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var patch directory.EmployeePatch
	if !decode(w, r, &patch) {
		return
	}
	e, err := h.store.UpdateEmployee(chi.URLParam(r, "name"), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employee": e})
}

// DeleteEmployee handles DELETE /institutions/{name}/employees/{id}.
func (h *DirectoryHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEmployee(chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employee deleted successfully!"})
}

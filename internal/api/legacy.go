package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
)

// Routes used by the existing browser front end. Identifiers travel in the
// JSON body rather than the path.

type legacyRenameRequest struct {
	OldName string `json:"old_institution_name"`
	NewName string `json:"new_institution_name"`
}

type legacyEmployeesRequest struct {
	Institution string                        `json:"institution_name"`
	Employees   map[string]directory.Employee `json:"employees"`
}

type legacyEmployeeRequest struct {
	Institution string                  `json:"institution_name"`
	EmployeeID  string                  `json:"employee_id"`
	Data        directory.EmployeePatch `json:"employee_data"`
}

func (h *DirectoryHandler) legacyDeleteInstitution(w http.ResponseWriter, r *http.Request) {
	var req InstitutionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.DeleteInstitution(req.Name); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Institution deleted successfully!"})
}

func (h *DirectoryHandler) legacyRenameInstitution(w http.ResponseWriter, r *http.Request) {
	var req legacyRenameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.RenameInstitution(req.OldName, req.NewName); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Institution name updated successfully!"})
}

func (h *DirectoryHandler) legacyAddEmployees(w http.ResponseWriter, r *http.Request) {
	var req legacyEmployeesRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.AddEmployees(req.Institution, req.Employees); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employees added successfully!"})
}

func (h *DirectoryHandler) legacyEditEmployee(w http.ResponseWriter, r *http.Request) {
	var req legacyEmployeeRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.store.UpdateEmployee(req.Institution, req.EmployeeID, req.Data); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employee data updated successfully!"})
}

func (h *DirectoryHandler) legacyDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	var req legacyEmployeeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.DeleteEmployee(req.Institution, req.EmployeeID); err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employee deleted successfully!"})
}

func mountLegacy(r chi.Router, l *LedgerHandler, d *DirectoryHandler) {
	if l != nil {
		r.Post("/submitPayment", l.SubmitPayment)
		r.Post("/submitExcelBatchPayment", l.SubmitBatchPayment)
		r.Post("/update-cell", l.UpdateCell)
	}
	if d != nil {
		r.Get("/getInstitutions", d.List)
		r.Post("/addInstitution", d.Create)
		r.Delete("/deleteInstitution", d.legacyDeleteInstitution)
		r.Put("/editInstitution", d.legacyRenameInstitution)
		r.Post("/addEmployees", d.legacyAddEmployees)
		r.Put("/editEmployee", d.legacyEditEmployee)
		r.Delete("/deleteEmployee", d.legacyDeleteEmployee)
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/service"

	"github.com/go-chi/chi/v5"
)

type departmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type locationRequest struct {
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	DepartmentID *string `json:"department_id"`
}

// DirectoryHandler serves the department and location CRUD API. Reads are
// open to any authenticated caller; mutations of existing records require
// ownership, enforced against the loaded record's owner.
type DirectoryHandler struct {
	directory *service.DirectoryService
	ownership *authz.Policy
	logger    *slog.Logger
}

func NewDirectoryHandler(directory *service.DirectoryService, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
		ownership: authz.OwnerOrReadOnly(),
		logger:    logger,
	}
}

func (h *DirectoryHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.directory.ListDepartments(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list departments", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to list departments")
		return
	}
	if departments == nil {
		departments = []domain.Department{}
	}
	response.JSON(w, http.StatusOK, departments)
}

func (h *DirectoryHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		response.Denial(w, authz.Deny(authz.ReasonAuthenticationRequired))
		return
	}
	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		response.Detail(w, http.StatusBadRequest, "name is required")
		return
	}

	dept, err := h.directory.CreateDepartment(r.Context(), req.Name, user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create department", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to create department")
		return
	}
	if req.Description != "" {
		dept.Description = req.Description
		if err := h.directory.UpdateDepartment(r.Context(), dept); err != nil {
			h.logger.WarnContext(r.Context(), "set department description", "error", err)
		}
	}
	response.JSON(w, http.StatusCreated, dept)
}

func (h *DirectoryHandler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	dept, err := h.directory.GetDepartment(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		h.writeDepartmentError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, dept)
}

func (h *DirectoryHandler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	dept, err := h.directory.GetDepartment(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		h.writeDepartmentError(w, r, err)
		return
	}
	if denial := h.checkOwnership(r, dept.OwnerID); denial != nil {
		response.Denial(w, denial)
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		dept.Name = req.Name
	}
	if req.Description != "" {
		dept.Description = req.Description
	}
	if err := h.directory.UpdateDepartment(r.Context(), dept); err != nil {
		h.logger.ErrorContext(r.Context(), "update department", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to update department")
		return
	}
	response.JSON(w, http.StatusOK, dept)
}

func (h *DirectoryHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "departmentID")
	dept, err := h.directory.GetDepartment(r.Context(), id)
	if err != nil {
		h.writeDepartmentError(w, r, err)
		return
	}
	if denial := h.checkOwnership(r, dept.OwnerID); denial != nil {
		response.Denial(w, denial)
		return
	}
	if err := h.directory.DeleteDepartment(r.Context(), id); err != nil {
		h.writeDepartmentError(w, r, err)
		return
	}
	observability.Audit(r, "directory.department.deleted", "department_id", id)
	response.JSON(w, http.StatusOK, map[string]string{"detail": "Department deleted"})
}

func (h *DirectoryHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.directory.ListLocations(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list locations", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to list locations")
		return
	}
	if locations == nil {
		locations = []domain.Location{}
	}
	response.JSON(w, http.StatusOK, locations)
}

func (h *DirectoryHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		response.Denial(w, authz.Deny(authz.ReasonAuthenticationRequired))
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		response.Detail(w, http.StatusBadRequest, "name is required")
		return
	}

	loc := &domain.Location{
		Name:         req.Name,
		Address:      req.Address,
		DepartmentID: req.DepartmentID,
		OwnerID:      user.ID,
	}
	if err := h.directory.CreateLocation(r.Context(), loc); err != nil {
		h.logger.ErrorContext(r.Context(), "create location", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to create location")
		return
	}
	response.JSON(w, http.StatusCreated, loc)
}

func (h *DirectoryHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.directory.GetLocation(r.Context(), chi.URLParam(r, "locationID"))
	if err != nil {
		h.writeLocationError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, loc)
}

func (h *DirectoryHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.directory.GetLocation(r.Context(), chi.URLParam(r, "locationID"))
	if err != nil {
		h.writeLocationError(w, r, err)
		return
	}
	if denial := h.checkOwnership(r, loc.OwnerID); denial != nil {
		response.Denial(w, denial)
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		loc.Name = req.Name
	}
	if req.Address != "" {
		loc.Address = req.Address
	}
	if req.DepartmentID != nil {
		loc.DepartmentID = req.DepartmentID
	}
	if err := h.directory.UpdateLocation(r.Context(), loc); err != nil {
		h.logger.ErrorContext(r.Context(), "update location", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to update location")
		return
	}
	response.JSON(w, http.StatusOK, loc)
}

func (h *DirectoryHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "locationID")
	loc, err := h.directory.GetLocation(r.Context(), id)
	if err != nil {
		h.writeLocationError(w, r, err)
		return
	}
	if denial := h.checkOwnership(r, loc.OwnerID); denial != nil {
		response.Denial(w, denial)
		return
	}
	if err := h.directory.DeleteLocation(r.Context(), id); err != nil {
		h.writeLocationError(w, r, err)
		return
	}
	observability.Audit(r, "directory.location.deleted", "location_id", id)
	response.JSON(w, http.StatusOK, map[string]string{"detail": "Location deleted"})
}

// checkOwnership evaluates the owner-or-read-only rule against the
// record's owner; superusers always pass.
func (h *DirectoryHandler) checkOwnership(r *http.Request, ownerID string) *authz.Denial {
	user := middleware.CurrentUser(r.Context())
	return h.ownership.Evaluate(authz.Input{
		User:    user,
		Method:  r.Method,
		OwnerID: ownerID,
	})
}

func (h *DirectoryHandler) writeDepartmentError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrDepartmentNotFound) {
		response.Detail(w, http.StatusNotFound, "Department not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "department operation", "error", err)
	response.Detail(w, http.StatusInternalServerError, "Department operation failed")
}

func (h *DirectoryHandler) writeLocationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrLocationNotFound) {
		response.Detail(w, http.StatusNotFound, "Location not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "location operation", "error", err)
	response.Detail(w, http.StatusInternalServerError, "Location operation failed")
}

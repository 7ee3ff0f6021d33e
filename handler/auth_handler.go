package handler

import (
	"encoding/json"
	"net/http"

	"github.com/arenazl/munify-sub001/middleware"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/utils"
)

// AuthHandler handles staff authentication. Tokens are tenant-scoped and
// required by the lifecycle endpoints.
type AuthHandler struct {
	employees *repository.EmployeeRepository
	jwtSecret []byte
	tokenTTL  int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(employees *repository.EmployeeRepository, jwtSecret string, tokenTTLHours int) *AuthHandler {
	if tokenTTLHours <= 0 {
		tokenTTLHours = 24
	}
	return &AuthHandler{
		employees: employees,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTLHours,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
// Returns a staff JWT on valid credentials. The response never distinguishes
// unknown email from bad password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "email and password are required")
		return
	}

	employee, err := h.employees.GetByEmail(r.Context(), req.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if employee == nil || utils.CheckPassword(req.Password, employee.PasswordHash) != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
		return
	}

	token, err := utils.GenerateStaffJWT(employee.EmployeeID, employee.TenantID, string(employee.Role), h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":       token,
		"employee_id": employee.EmployeeID,
		"tenant_id":   employee.TenantID,
		"role":        employee.Role,
	})
}

// Me handles GET /api/v1/auth/me
// Returns the employee record behind the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := middleware.EmployeeIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "No staff identity in request")
		return
	}

	employee, err := h.employees.GetByID(r.Context(), employeeID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if employee == nil {
		respondWithError(w, http.StatusNotFound, "Not found", "Employee not found")
		return
	}
	respondWithJSON(w, http.StatusOK, employee)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/arenazl/munify-sub001/models"
)

// EmployeeRepository handles database operations for municipal staff
type EmployeeRepository struct {
	db *sql.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `employee_id, tenant_id, full_name, email, role, password_hash, is_active, created_at`

// GetByEmail retrieves an active employee by email. Returns nil when not found.
func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE email = ? AND is_active = true LIMIT 1`
	employee := &models.Employee{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&employee.EmployeeID,
		&employee.TenantID,
		&employee.FullName,
		&employee.Email,
		&employee.Role,
		&employee.PasswordHash,
		&employee.IsActive,
		&employee.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee by email: %w", err)
	}
	return employee, nil
}

// GetByID retrieves an employee by ID. Returns nil when not found.
func (r *EmployeeRepository) GetByID(ctx context.Context, employeeID int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_id = ?`
	employee := &models.Employee{}
	err := r.db.QueryRowContext(ctx, query, employeeID).Scan(
		&employee.EmployeeID,
		&employee.TenantID,
		&employee.FullName,
		&employee.Email,
		&employee.Role,
		&employee.PasswordHash,
		&employee.IsActive,
		&employee.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return employee, nil
}

// EmailsByRoles retrieves the emails of active employees holding any of the
// given roles within a tenant. Used to resolve notify recipients.
func (r *EmployeeRepository) EmailsByRoles(ctx context.Context, tenantID int64, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")
	query := fmt.Sprintf(`
		SELECT email FROM employees
		WHERE tenant_id = ? AND is_active = true AND role IN (%s)
		ORDER BY email ASC
	`, placeholders)

	args := []interface{}{tenantID}
	for _, role := range roles {
		args = append(args, role)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan employee email: %w", err)
		}
		emails = append(emails, email)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employee emails: %w", err)
	}
	return emails, nil
}

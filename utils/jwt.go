package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims are the parsed claims of a staff token.
type StaffClaims struct {
	EmployeeID int64
	TenantID   int64
	Role       string
}

// GenerateStaffJWT generates a JWT for an authenticated employee, scoped to
// their tenant.
func GenerateStaffJWT(employeeID, tenantID int64, role string, secret []byte, expiresInHours int) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"employee_id": employeeID,
		"tenant_id":   tenantID,
		"role":        role,
		"actor_type":  "staff",
		"exp":         now.Add(time.Duration(expiresInHours) * time.Hour).Unix(),
		"iat":         now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseStaffJWT validates a staff token and extracts its claims.
func ParseStaffJWT(tokenString string, secret []byte) (*StaffClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if actorType, _ := claims["actor_type"].(string); actorType != "staff" {
		return nil, fmt.Errorf("token is not staff-scoped")
	}

	employeeID, ok := claims["employee_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("token missing employee_id")
	}
	tenantID, ok := claims["tenant_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("token missing tenant_id")
	}
	role, _ := claims["role"].(string)

	return &StaffClaims{
		EmployeeID: int64(employeeID),
		TenantID:   int64(tenantID),
		Role:       role,
	}, nil
}

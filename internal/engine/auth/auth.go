package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"flatconnect/internal/domain"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
	Message    string
}

func (e ForbiddenError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permission %s required", e.Permission)
}

const (
	PermIssueListAll = "issue.list_all"
	PermIssueAssign  = "issue.assign"
	PermIssueWork    = "issue.work"
	PermWorkerList   = "worker.list"
)

var rolePermissions = map[domain.Role][]string{
	domain.RoleAdmin:     {PermIssueListAll, PermIssueAssign, PermIssueWork, PermWorkerList},
	domain.RoleSecretary: {PermIssueListAll, PermIssueAssign, PermWorkerList},
	domain.RoleWorker:    {PermIssueWork},
	domain.RoleMember:    nil,
}

func HasPermission(role domain.Role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Require returns a ForbiddenError carrying msg when role lacks perm.
func Require(role domain.Role, perm, msg string) error {
	if HasPermission(role, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm, Message: msg}
}

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 session tokens whose subject is the user id.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t Tokens) Issue(userID int64) (string, error) {
	if len(t.Secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   "flatconnect-dev",
	}
	if t.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Parse returns the user id a token was issued for.
func (t Tokens) Parse(token string) (int64, error) {
	if len(t.Secret) == 0 || strings.TrimSpace(token) == "" {
		return 0, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

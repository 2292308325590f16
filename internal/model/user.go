package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of web account tiers. The zero value is not a valid role.
type Role uint8

const (
	RoleViewer Role = iota + 1
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleViewer:     "viewer",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "super_admin",
}

// ParseRole maps a stored or submitted role tag onto the enum.
func ParseRole(raw string) (Role, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	for role, name := range roleNames {
		if name == tag {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Outranks reports whether r sits strictly above other in the account hierarchy.
func (r Role) Outranks(other Role) bool {
	return r > other
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// HashAlgorithm tags the format of a stored password digest.
type HashAlgorithm uint8

const (
	HashPBKDF2SHA256 HashAlgorithm = iota + 1
	HashBcrypt
	HashLegacyPBKDF2Hex
)

var hashAlgorithmNames = map[HashAlgorithm]string{
	HashPBKDF2SHA256:    "pbkdf2_sha256",
	HashBcrypt:          "bcrypt",
	HashLegacyPBKDF2Hex: "legacy_pbkdf2_hex",
}

func ParseHashAlgorithm(raw string) (HashAlgorithm, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	for alg, name := range hashAlgorithmNames {
		if name == tag {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidInput, raw)
}

func (a HashAlgorithm) String() string {
	if name, ok := hashAlgorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("hash_algorithm(%d)", uint8(a))
}

func (a HashAlgorithm) Valid() bool {
	_, ok := hashAlgorithmNames[a]
	return ok
}

func (a HashAlgorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", a)
	}
	return []byte(a.String()), nil
}

func (a *HashAlgorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseHashAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type WebUser struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	PasswordHash  string        `json:"-"`
	HashAlgorithm HashAlgorithm `json:"-"`
	Role          Role          `json:"role"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
}

// PasswordUpdate replaces a stored digest together with its algorithm tag.
type PasswordUpdate struct {
	Hash      string
	Algorithm HashAlgorithm
}

// UserPatch carries the mutable fields of a user; nil means unchanged.
type UserPatch struct {
	Role   *Role
	Active *bool
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
}

func (u WebUser) Public() AuthUser {
	return AuthUser{ID: u.ID, Username: u.Username, Role: u.Role, Active: u.Active}
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type SessionResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	ExpiresAt   string   `json:"expires_at"`
	User        AuthUser `json:"user"`
}

type DeviceToken struct {
	UserID      string    `json:"user_id"`
	FCMToken    string    `json:"fcm_token"`
	DeviceModel *string   `json:"device_model,omitempty"`
	AppVersion  *string   `json:"app_version,omitempty"`
	Platform    *string   `json:"platform,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

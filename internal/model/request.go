package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type BootstrapRequest struct {
	BootstrapSecret string `json:"bootstrap_secret"`
	Username        string `json:"username"`
	Password        string `json:"password"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type ForcePasswordRequest struct {
	Password string `json:"password"`
}

type ImportUserItem struct {
	Username      string `json:"username"`
	PasswordHash  string `json:"password_hash"`
	HashAlgorithm string `json:"hash_algorithm"`
	Role          string `json:"role"`
	Active        *bool  `json:"active"`
}

type ImportUsersRequest struct {
	Users []ImportUserItem `json:"users"`
}

type ImportFailure struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

type ImportUsersResponse struct {
	Imported []AuthUser      `json:"imported"`
	Skipped  []ImportFailure `json:"skipped"`
}

type RegisterDeviceRequest struct {
	FCMToken    string  `json:"fcm_token"`
	DeviceModel *string `json:"device_model"`
	AppVersion  *string `json:"app_version"`
	Platform    *string `json:"platform"`
}

// RequestMeta carries caller details used for rate limiting and audit.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

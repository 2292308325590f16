package service

// LoginState names the steps of a login attempt; terminal states are logged.
type LoginState uint8

const (
	LoginAwaitingCredentials LoginState = iota
	LoginCheckingRateLimit
	LoginVerifyingPassword
	LoginRehashing
	LoginIssuingToken
	LoginAuthenticated
	LoginLocked
	LoginRejected
	LoginBootstrapRequired
	LoginFailed
)

var loginStateNames = [...]string{
	LoginAwaitingCredentials: "AWAITING_CREDENTIALS",
	LoginCheckingRateLimit:   "CHECKING_RATE_LIMIT",
	LoginVerifyingPassword:   "VERIFYING_PASSWORD",
	LoginRehashing:           "REHASHING",
	LoginIssuingToken:        "ISSUING_TOKEN",
	LoginAuthenticated:       "AUTHENTICATED",
	LoginLocked:              "LOCKED",
	LoginRejected:            "REJECTED",
	LoginBootstrapRequired:   "BOOTSTRAP_REQUIRED",
	LoginFailed:              "FAILED",
}

func (s LoginState) String() string {
	if int(s) < len(loginStateNames) {
		return loginStateNames[s]
	}
	return "UNKNOWN"
}

func (s LoginState) Terminal() bool {
	switch s {
	case LoginAuthenticated, LoginLocked, LoginRejected, LoginBootstrapRequired, LoginFailed:
		return true
	default:
		return false
	}
}

package model

import "time"

// PrincipalKind tells which authentication mode resolved an identity.
type PrincipalKind uint8

const (
	PrincipalWebUser PrincipalKind = iota + 1
	PrincipalDevice
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalWebUser:
		return "web_user"
	case PrincipalDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Kind      PrincipalKind
	UserID    string
	Username  string
	Role      Role
	DeviceID  string
	SessionID string
	ExpiresAt time.Time
}

func (i Identity) IsDevice() bool {
	return i.Kind == PrincipalDevice
}

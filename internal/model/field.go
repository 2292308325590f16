package model

import "time"

type Installation struct {
	ID            string    `json:"id"`
	PrinterSerial string    `json:"printer_serial"`
	PrinterModel  string    `json:"printer_model"`
	DriverVersion string    `json:"driver_version"`
	SiteName      string    `json:"site_name"`
	InstalledBy   string    `json:"installed_by,omitempty"`
	InstalledAt   time.Time `json:"installed_at"`
}

type CreateInstallationRequest struct {
	PrinterSerial string `json:"printer_serial"`
	PrinterModel  string `json:"printer_model"`
	DriverVersion string `json:"driver_version"`
	SiteName      string `json:"site_name"`
	InstalledBy   string `json:"installed_by"`
}

// IncidentSeverity orders incident reports; only critical ones trigger push dispatch.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

func (s IncidentSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

type Incident struct {
	ID             string           `json:"id"`
	InstallationID string           `json:"installation_id"`
	Severity       IncidentSeverity `json:"severity"`
	Description    string           `json:"description"`
	ReportedBy     string           `json:"reported_by,omitempty"`
	DeviceID       string           `json:"device_id,omitempty"`
	ReportedAt     time.Time        `json:"reported_at"`
}

type CreateIncidentRequest struct {
	InstallationID string           `json:"installation_id"`
	Severity       IncidentSeverity `json:"severity"`
	Description    string           `json:"description"`
	ReportedBy     string           `json:"reported_by"`
}

type PhotoUploadRequest struct {
	InstallationID string `json:"installation_id"`
	ContentType    string `json:"content_type"`
}

type PhotoUploadURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CloudCredentials struct {
	Endpoint        string `json:"endpoint,omitempty"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

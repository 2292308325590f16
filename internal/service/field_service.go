package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"printer-fieldops/internal/event"
	"printer-fieldops/internal/model"
)

const (
	defaultInstallationLimit = 100
	maxInstallationLimit     = 500
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
	"image/webp": ".webp",
}

// PhotoPresigner hands out direct-to-bucket upload URLs.
type PhotoPresigner interface {
	PresignUpload(ctx context.Context, key string, contentType string) (model.PhotoUploadURL, error)
}

// FieldService is the device-facing CRUD behind the HMAC gate.
type FieldService struct {
	installations InstallationStore
	incidents     IncidentStore
	presigner     PhotoPresigner
	bus           event.Bus
	now           func() time.Time
}

func NewFieldService(installations InstallationStore, incidents IncidentStore, presigner PhotoPresigner, bus event.Bus) *FieldService {
	return &FieldService{
		installations: installations,
		incidents:     incidents,
		presigner:     presigner,
		bus:           bus,
		now:           time.Now,
	}
}

func (s *FieldService) ListInstallations(ctx context.Context, limit int) ([]model.Installation, error) {
	if limit <= 0 {
		limit = defaultInstallationLimit
	}
	if limit > maxInstallationLimit {
		limit = maxInstallationLimit
	}

	out, err := s.installations.List(ctx, limit)
	if err != nil {
		return nil, storeError("list installations", err)
	}
	return out, nil
}

func (s *FieldService) CreateInstallation(ctx context.Context, req model.CreateInstallationRequest) (model.Installation, error) {
	in := model.Installation{
		ID:            uuid.NewString(),
		PrinterSerial: strings.TrimSpace(req.PrinterSerial),
		PrinterModel:  strings.TrimSpace(req.PrinterModel),
		DriverVersion: strings.TrimSpace(req.DriverVersion),
		SiteName:      strings.TrimSpace(req.SiteName),
		InstalledBy:   strings.TrimSpace(req.InstalledBy),
		InstalledAt:   s.now().UTC(),
	}
	if in.PrinterSerial == "" || in.PrinterModel == "" || in.DriverVersion == "" || in.SiteName == "" {
		return model.Installation{}, fmt.Errorf("%w: printer_serial, printer_model, driver_version and site_name are required", model.ErrInvalidInput)
	}

	if err := s.installations.Create(ctx, in); err != nil {
		return model.Installation{}, storeError("create installation", err)
	}
	return in, nil
}

// ReportIncident stores the report and, for critical severity, publishes an
// event for push dispatch. Dispatch never affects the response.
func (s *FieldService) ReportIncident(ctx context.Context, device model.Identity, req model.CreateIncidentRequest) (model.Incident, error) {
	inc := model.Incident{
		ID:             uuid.NewString(),
		InstallationID: strings.TrimSpace(req.InstallationID),
		Severity:       model.IncidentSeverity(strings.ToLower(strings.TrimSpace(string(req.Severity)))),
		Description:    strings.TrimSpace(req.Description),
		ReportedBy:     strings.TrimSpace(req.ReportedBy),
		DeviceID:       device.DeviceID,
		ReportedAt:     s.now().UTC(),
	}
	if !inc.Severity.Valid() {
		return model.Incident{}, fmt.Errorf("%w: severity must be low, medium, high or critical", model.ErrInvalidInput)
	}
	if inc.InstallationID == "" || inc.Description == "" {
		return model.Incident{}, fmt.Errorf("%w: installation_id and description are required", model.ErrInvalidInput)
	}

	exists, err := s.installations.Exists(ctx, inc.InstallationID)
	if err != nil {
		return model.Incident{}, storeError("find installation", err)
	}
	if !exists {
		return model.Incident{}, model.ErrInstallationNotFound
	}

	if err := s.incidents.Create(ctx, inc); err != nil {
		return model.Incident{}, storeError("create incident", err)
	}

	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeIncidentReported, device.DeviceID, inc, inc.ReportedAt))
		if inc.Severity == model.SeverityCritical {
			s.bus.Publish(event.New(event.TypeIncidentCritical, device.DeviceID, inc, inc.ReportedAt))
		}
	}
	return inc, nil
}

func (s *FieldService) PhotoUploadURL(ctx context.Context, req model.PhotoUploadRequest) (model.PhotoUploadURL, error) {
	if s.presigner == nil {
		return model.PhotoUploadURL{}, fmt.Errorf("%w: object storage is not configured", model.ErrDependencyUnavailable)
	}

	installationID := strings.TrimSpace(req.InstallationID)
	if installationID == "" {
		return model.PhotoUploadURL{}, fmt.Errorf("%w: installation_id is required", model.ErrInvalidInput)
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := photoExtensions[contentType]
	if !ok {
		return model.PhotoUploadURL{}, fmt.Errorf("%w: unsupported content_type %q", model.ErrInvalidInput, req.ContentType)
	}

	exists, err := s.installations.Exists(ctx, installationID)
	if err != nil {
		return model.PhotoUploadURL{}, storeError("find installation", err)
	}
	if !exists {
		return model.PhotoUploadURL{}, model.ErrInstallationNotFound
	}

	key := fmt.Sprintf("installations/%s/photos/%s%s", installationID, uuid.NewString(), ext)
	url, err := s.presigner.PresignUpload(ctx, key, contentType)
	if err != nil {
		return model.PhotoUploadURL{}, storeError("presign photo upload", err)
	}
	return url, nil
}

// CredentialService exposes the object-storage account to super_admins with
// the secret key masked.
type CredentialService struct {
	creds model.CloudCredentials
}

func NewCredentialService(creds model.CloudCredentials) *CredentialService {
	return &CredentialService{creds: creds}
}

func (s *CredentialService) Masked() model.CloudCredentials {
	out := s.creds
	out.SecretAccessKey = maskSecret(out.SecretAccessKey)
	return out
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

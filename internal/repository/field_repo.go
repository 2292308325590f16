package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"printer-fieldops/internal/model"
)

type InstallationRepository struct {
	db DBTX
}

func NewInstallationRepository(db DBTX) *InstallationRepository {
	return &InstallationRepository{db: db}
}

func (r *InstallationRepository) Create(ctx context.Context, in model.Installation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO installations (id, printer_serial, printer_model, driver_version, site_name, installed_by, installed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.PrinterSerial, in.PrinterModel, in.DriverVersion, in.SiteName, nullable(in.InstalledBy), in.InstalledAt)
	if err != nil {
		return fmt.Errorf("create installation: %w", err)
	}
	return nil
}

func (r *InstallationRepository) List(ctx context.Context, limit int) ([]model.Installation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, printer_serial, printer_model, driver_version, site_name, installed_by, installed_at
		 FROM installations
		 ORDER BY installed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	defer rows.Close()

	out := make([]model.Installation, 0)
	for rows.Next() {
		var (
			in          model.Installation
			installedBy *string
		)
		if err := rows.Scan(&in.ID, &in.PrinterSerial, &in.PrinterModel, &in.DriverVersion,
			&in.SiteName, &installedBy, &in.InstalledAt); err != nil {
			return nil, fmt.Errorf("scan installation: %w", err)
		}
		in.InstalledBy = deref(installedBy)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *InstallationRepository) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	var found string
	err := r.db.QueryRow(ctx, `SELECT id FROM installations WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find installation: %w", err)
	}
	return true, nil
}

type IncidentRepository struct {
	db DBTX
}

func NewIncidentRepository(db DBTX) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (r *IncidentRepository) Create(ctx context.Context, inc model.Incident) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO incidents (id, installation_id, severity, description, reported_by, device_id, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inc.ID, inc.InstallationID, string(inc.Severity), inc.Description,
		nullable(inc.ReportedBy), nullable(inc.DeviceID), inc.ReportedAt)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"probikes/internal/blob"
	"probikes/internal/infra/persistence/snapshot"
	"probikes/pkg/domain"
)

// BackupPrefix is the blob key prefix of exported backups.
const BackupPrefix = "backups/"

var errNoBackupStore = fmt.Errorf("backup store not configured: %w", blob.ErrUnsupported)

// ExportBackup encodes the whole current document. When a backup store is
// configured the payload is also written under a new create-only key.
func (s *Service) ExportBackup(ctx context.Context) (blob.Info, []byte, error) {
	ctx, end := s.observe(ctx, "export_backup")
	info, payload, err := s.exportBackup(ctx)
	end(err)
	return info, payload, err
}

func (s *Service) exportBackup(ctx context.Context) (blob.Info, []byte, error) {
	payload, err := snapshot.Encode(s.store.ExportState())
	if err != nil {
		return blob.Info{}, nil, err
	}
	if s.backups == nil {
		return blob.Info{Size: int64(len(payload)), ContentType: "application/json"}, payload, nil
	}
	key := fmt.Sprintf("%s%s-%s.json", BackupPrefix, s.now().Format("20060102T150405Z"), uuid.NewString())
	info, err := s.backups.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("write backup: %w", err)
	}
	return info, payload, nil
}

// ListBackups lists exported backups ordered by key, which is oldest first.
func (s *Service) ListBackups(ctx context.Context) ([]blob.Info, error) {
	if s.backups == nil {
		return nil, errNoBackupStore
	}
	return s.backups.List(ctx, BackupPrefix)
}

// BackupURL returns a pre-signed download URL for a backup.
func (s *Service) BackupURL(ctx context.Context, key string) (string, error) {
	if err := checkBackupKey(key); err != nil {
		return "", err
	}
	if s.backups == nil {
		return "", errNoBackupStore
	}
	return s.backups.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET"})
}

// RestoreBackup imports a previously exported backup by key.
func (s *Service) RestoreBackup(ctx context.Context, key string) (domain.MigrationReport, Result, error) {
	if err := checkBackupKey(key); err != nil {
		return domain.MigrationReport{}, Result{}, err
	}
	if s.backups == nil {
		return domain.MigrationReport{}, Result{}, errNoBackupStore
	}
	_, rc, err := s.backups.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.MigrationReport{}, Result{}, domain.NotFound(domain.EntityBackup, key)
		}
		return domain.MigrationReport{}, Result{}, err
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.MigrationReport{}, Result{}, fmt.Errorf("read backup: %w", err)
	}
	return s.ImportBackup(ctx, raw)
}

func checkBackupKey(key string) error {
	if !strings.HasPrefix(key, BackupPrefix) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: backup key must start with %q", domain.ErrInvalidInput, BackupPrefix)
	}
	return nil
}

// backupShape holds the collections a backup must carry.
type backupShape struct {
	Clients  []json.RawMessage `json:"clients"`
	Services []json.RawMessage `json:"services"`
}

// ValidateBackup checks that raw is a JSON object with non-empty clients and
// services arrays.
func ValidateBackup(raw []byte) error {
	var shape backupShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidBackup, err)
	}
	if len(shape.Clients) == 0 || len(shape.Services) == 0 {
		return fmt.Errorf("%w: clients and services must be non-empty", domain.ErrInvalidBackup)
	}
	return nil
}

// ImportBackup replaces the whole dataset with raw after validating and
// migrating it. A rejected payload leaves the current dataset untouched.
func (s *Service) ImportBackup(ctx context.Context, raw []byte) (domain.MigrationReport, Result, error) {
	var report domain.MigrationReport
	res, err := s.run(ctx, "import_backup", func(tx Transaction) error {
		if err := ValidateBackup(raw); err != nil {
			return err
		}
		doc, err := snapshot.Decode(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidBackup, err)
		}
		report = tx.ReplaceDocument(doc)
		return nil
	})
	if err == nil {
		s.logger.Info("backup imported",
			"from_version", report.FromVersion,
			"reload_required", report.ReloadRequired,
			"reminders_removed", report.RemindersRemoved)
	}
	return report, res, err
}

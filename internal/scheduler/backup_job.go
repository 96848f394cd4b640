package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/backup"
)

// BackupJob uploads the snapshot database to object storage and rotates
// old archives.
type BackupJob struct {
	svc           *backup.Service
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a scheduled snapshot backup.
func NewBackupJob(svc *backup.Service, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		svc:           svc,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name implements Job.
func (j *BackupJob) Name() string { return "snapshot_backup" }

// Run implements Job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	key, err := j.svc.Upload(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("key", key).Msg("Snapshot backup complete")

	if err := j.svc.Rotate(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

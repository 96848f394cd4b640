package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const archiveTimeLayout = "2006-01-02-150405"

// Service backs up the snapshot database to object storage.
type Service struct {
	store  ObjectStore
	dbPath string
	prefix string
	log    zerolog.Logger
}

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewService creates a backup service for the snapshot database at dbPath.
func NewService(store ObjectStore, dbPath, prefix string, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		dbPath: dbPath,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("service", "backup").Logger(),
	}
}

// Upload gzips the snapshot database and uploads it under a timestamped
// key. Returns the object key.
func (s *Service) Upload(ctx context.Context) (string, error) {
	start := time.Now()

	staged, checksum, err := s.stageArchive()
	if err != nil {
		return "", err
	}
	defer os.Remove(staged)

	f, err := os.Open(staged)
	if err != nil {
		return "", fmt.Errorf("open staged archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat staged archive: %w", err)
	}

	key := s.key(fmt.Sprintf("snapshots-%s.db.gz", start.UTC().Format(archiveTimeLayout)))
	if err := s.store.Upload(ctx, key, f); err != nil {
		return "", err
	}

	s.log.Info().
		Str("key", key).
		Str("checksum", checksum).
		Int64("size_bytes", info.Size()).
		Dur("duration_ms", time.Since(start)).
		Msg("Snapshot backup uploaded")

	return key, nil
}

// ListBackups lists stored backups, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, s.key("snapshots-"))
	if err != nil {
		return nil, err
	}

	var backups []BackupInfo
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		name := path.Base(*obj.Key)
		if !strings.HasPrefix(name, "snapshots-") || !strings.HasSuffix(name, ".db.gz") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, "snapshots-"), ".db.gz")
		ts, err := time.Parse(archiveTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", *obj.Key).Msg("Unparseable backup timestamp, skipping")
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{Key: *obj.Key, Timestamp: ts, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Rotate deletes backups older than retentionDays, always keeping the
// newest three. retentionDays 0 keeps everything.
func (s *Service) Rotate(ctx context.Context, retentionDays int) error {
	const keep = 3

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= keep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < keep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}

// stageArchive writes a gzipped copy of the database to a temp file and
// returns its path plus the sha256 of the uncompressed database.
func (s *Service) stageArchive() (string, string, error) {
	src, err := os.Open(s.dbPath)
	if err != nil {
		return "", "", fmt.Errorf("open snapshot database: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(s.dbPath), "backup-*.db.gz")
	if err != nil {
		return "", "", fmt.Errorf("create staging file: %w", err)
	}

	gz := gzip.NewWriter(tmp)
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(gz, hash), src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("compress snapshot database: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("close staging file: %w", err)
	}

	return tmp.Name(), fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func (s *Service) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	objects map[string][]byte
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader) error {
	if f.fail {
		return fmt.Errorf("upload rejected")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	var out []types.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(data))),
			})
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func writeDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.db")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUpload(t *testing.T) {
	store := newFakeStore()
	dbPath := writeDB(t, "hello snapshot data")
	svc := NewService(store, dbPath, "backups", zerolog.Nop())

	key, err := svc.Upload(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "backups/snapshots-"))
	assert.True(t, strings.HasSuffix(key, ".db.gz"))

	// The stored object gunzips back to the original database bytes.
	gz, err := gzip.NewReader(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	restored, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "hello snapshot data", string(restored))

	// The staging file was cleaned up.
	entries, err := os.ReadDir(filepath.Dir(dbPath))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "backup-"), "staging leftover %s", e.Name())
	}
}

func TestUploadNoPrefix(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, writeDB(t, "x"), "", zerolog.Nop())

	key, err := svc.Upload(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "snapshots-"))
}

func TestUploadMissingDatabase(t *testing.T) {
	svc := NewService(newFakeStore(), filepath.Join(t.TempDir(), "absent.db"), "backups", zerolog.Nop())
	_, err := svc.Upload(context.Background())
	require.Error(t, err)
}

func TestUploadStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	svc := NewService(store, writeDB(t, "x"), "backups", zerolog.Nop())
	_, err := svc.Upload(context.Background())
	require.Error(t, err)
}

func seedBackups(store *fakeStore, ages ...time.Duration) {
	now := time.Now().UTC()
	for _, age := range ages {
		ts := now.Add(-age).Format(archiveTimeLayout)
		store.objects["backups/snapshots-"+ts+".db.gz"] = []byte("data")
	}
}

func TestListBackupsNewestFirst(t *testing.T) {
	store := newFakeStore()
	seedBackups(store, 72*time.Hour, 2*time.Hour, 24*time.Hour)
	store.objects["backups/unrelated.txt"] = []byte("junk")

	svc := NewService(store, "unused", "backups", zerolog.Nop())
	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 3)
	for i := 1; i < len(backups); i++ {
		assert.True(t, backups[i-1].Timestamp.After(backups[i].Timestamp))
	}
}

func TestRotateKeepsMinimum(t *testing.T) {
	store := newFakeStore()
	// All ancient, but the newest three always survive.
	seedBackups(store, 2000*time.Hour, 3000*time.Hour, 4000*time.Hour)

	svc := NewService(store, "unused", "backups", zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background(), 7))
	assert.Len(t, store.objects, 3)
}

func TestRotateDeletesExpired(t *testing.T) {
	store := newFakeStore()
	seedBackups(store, time.Hour, 2*time.Hour, 3*time.Hour, 30*24*time.Hour, 60*24*time.Hour)

	svc := NewService(store, "unused", "backups", zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background(), 7))

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 3)
}

func TestRotateZeroRetentionKeepsAll(t *testing.T) {
	store := newFakeStore()
	seedBackups(store, time.Hour, 2000*time.Hour, 4000*time.Hour, 6000*time.Hour)

	svc := NewService(store, "unused", "backups", zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background(), 0))
	assert.Len(t, store.objects, 4)
}

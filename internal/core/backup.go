package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"scenecore/internal/backend"
	"scenecore/internal/blob"
	"scenecore/pkg/domain"
)

// BackupPrefix is the blob key prefix under which project backups live.
const BackupPrefix = "backups/"

// ErrBackupDisabled is returned by Backup when the project preferences turn
// backups off.
var ErrBackupDisabled = errors.New("backups are disabled for this project")

var backupClock = func() time.Time { return time.Now().UTC() }

// BackupKey returns the blob key of a backup taken at ts.
func BackupKey(project string, ts time.Time) string {
	return path.Join(BackupPrefix, project, ts.UTC().Format("20060102T150405.000000000Z")+".json")
}

// Backup writes a timestamped copy of the scene snapshot to store.
func Backup(ctx context.Context, s *Service, store blob.Store) (blob.Info, error) {
	if !s.Project().Preferences.BackupEnabled {
		return blob.Info{}, ErrBackupDisabled
	}
	snap := Save(s)
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return blob.Info{}, err
	}
	key := BackupKey(snap.ProjectName, backupClock())
	info, err := store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"project": snap.ProjectName},
	})
	if err != nil {
		return blob.Info{}, domain.IOError{Op: "backup", Path: key, Err: err}
	}
	s.Logger().Info("backup written",
		zap.String("key", key),
		zap.String("driver", string(store.Driver())),
		zap.Int64("bytes", info.Size))
	return info, nil
}

// ListBackups returns the backups of project, oldest first.
func ListBackups(ctx context.Context, store blob.Store, project string) ([]blob.Info, error) {
	infos, err := store.List(ctx, path.Join(BackupPrefix, project)+"/")
	if err != nil {
		return nil, domain.IOError{Op: "list backups", Path: project, Err: err}
	}
	return infos, nil
}

// RestoreBackup loads the snapshot stored at key and replays it onto a fresh
// service.
func RestoreBackup(ctx context.Context, store blob.Store, key string, b backend.Backend, opts ...Option) (*Service, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, domain.IOError{Op: "restore backup", Path: key, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.IOError{Op: "restore backup", Path: key, Err: err}
	}
	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return Load(ctx, snap, b, opts...)
}

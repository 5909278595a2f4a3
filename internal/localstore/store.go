// Package localstore provides a StorageService backed by the local file
// system: uploads are staged as a single growing file keyed by upload
// path, and promoted to a durable location derived from the upload's
// identifiers once their announced size has been reached. Orphaned
// staging files are not swept here or elsewhere in this module; a staging
// file is only removed by Clean or by its promotion.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sensortrace/collector-upload/internal/upload"
)

var defaultFilePerm = os.FileMode(0o664)

// Store is a StorageService that keeps staged and finished uploads under
// a single root directory.
type Store struct {
	Root string
}

// New creates a Store rooted at path. New itself touches no directory;
// Store creates the "staging" and "objects" subdirectories it writes
// into on demand.
func New(path string) Store {
	return Store{Root: path}
}

func (s Store) stagingPath(uploadPath string) string {
	return filepath.Join(s.Root, "staging", uploadPath+".bin")
}

func (s Store) objectPath(id upload.Identifier) string {
	if id.IsAttachment() {
		return filepath.Join(s.Root, "objects", id.DeviceID, id.MeasurementID, "attachments", id.AttachmentID+".bin")
	}
	return filepath.Join(s.Root, "objects", id.DeviceID, id.MeasurementID+".bin")
}

// IsStored reports whether id already has a finished object on disk.
func (s Store) IsStored(ctx context.Context, id upload.Identifier) (bool, error) {
	_, err := os.Stat(s.objectPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// BytesUploaded reports the size of the staging file for uploadPath.
func (s Store) BytesUploaded(ctx context.Context, uploadPath string) (int64, error) {
	info, err := os.Stat(s.stagingPath(uploadPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, upload.ErrSessionExpired
		}
		return 0, err
	}
	return info.Size(), nil
}

// Store appends r to the staging file for meta.UploadPath and, once the
// announced total is reached, promotes it to the durable object location
// named by meta.Uploadable.Identifier.
func (s Store) Store(ctx context.Context, r io.Reader, meta upload.UploadMetaData) (upload.Status, error) {
	staging := s.stagingPath(meta.UploadPath)

	if err := os.MkdirAll(filepath.Dir(staging), 0o775); err != nil {
		return upload.Status{}, fmt.Errorf("localstore: preparing staging dir: %w", err)
	}

	file, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return upload.Status{}, fmt.Errorf("localstore: opening staging file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(r, meta.ContentRange.Size()))
	// A client pausing mid-chunk surfaces as io.ErrUnexpectedEOF; that is
	// not a storage failure, just a shorter write than requested.
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil {
		return upload.Status{}, fmt.Errorf("localstore: writing chunk: %w", err)
	}

	offset := meta.ContentRange.From + n
	if offset < meta.ContentRange.Total {
		return upload.Status{UploadPath: meta.UploadPath, State: upload.StateIncomplete, ByteSize: offset}, nil
	}

	if err := file.Close(); err != nil {
		return upload.Status{}, fmt.Errorf("localstore: closing staging file: %w", err)
	}

	objectPath := s.objectPath(meta.Uploadable.Identifier)
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o775); err != nil {
		return upload.Status{}, fmt.Errorf("localstore: preparing object dir: %w", err)
	}

	if _, err := os.Stat(objectPath); err == nil {
		// A concurrent request already finalized this identifier first.
		return upload.Status{}, upload.ErrUploadAlreadyExists
	}

	if err := os.Rename(staging, objectPath); err != nil {
		if os.IsExist(err) {
			return upload.Status{}, upload.ErrUploadAlreadyExists
		}
		return upload.Status{}, fmt.Errorf("localstore: finalizing object: %w", err)
	}

	return upload.Status{UploadPath: meta.UploadPath, State: upload.StateComplete, ByteSize: offset}, nil
}

// Clean removes the staging file for uploadPath, if any.
func (s Store) Clean(ctx context.Context, uploadPath string) error {
	err := os.Remove(s.stagingPath(uploadPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

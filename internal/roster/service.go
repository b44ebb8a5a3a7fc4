// Package roster manages the allowlist of participant emails.
package roster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/queue"
	"github.com/aura-webinar/portal/pkg/storage"
)

const discardTimeout = 10 * time.Second

// Store is the roster persistence.
type Store interface {
	IsRegistered(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]models.RegisteredUser, error)
	AddMany(ctx context.Context, emails []string) (int, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// Archive stores uploaded roster files.
type Archive interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error
	DeleteObject(ctx context.Context, bucket, key string) error
	RostersBucket() string
}

// Enqueuer hands archived files to the import worker.
type Enqueuer interface {
	EnqueueRosterImport(ctx context.Context, payload queue.RosterImportPayload) (string, error)
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	InsertedCount int      `json:"insertedCount"`
	TotalCount    int      `json:"totalCount"`
	Rejected      []string `json:"rejected,omitempty"`
}

// UploadResult is returned by Upload. Exactly one of Import or JobID is set.
type UploadResult struct {
	Import *ImportResult `json:"import,omitempty"`
	JobID  string        `json:"jobId,omitempty"`
	Key    string        `json:"key,omitempty"`
}

// Service implements roster management and the login allowlist.
type Service struct {
	store   Store
	archive Archive
	jobs    Enqueuer
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a roster service that imports uploads inline.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, now: time.Now, logger: logger}
}

// WithArchive makes uploads go through object storage and the job queue.
func (s *Service) WithArchive(archive Archive, jobs Enqueuer) *Service {
	s.archive = archive
	s.jobs = jobs
	return s
}

// IsRegistered reports whether email may log in.
func (s *Service) IsRegistered(ctx context.Context, email string) (bool, error) {
	ok, err := s.store.IsRegistered(ctx, models.NormalizeEmail(email))
	if err != nil {
		return false, apperr.Store("roster lookup", err)
	}
	return ok, nil
}

// List returns every registered user.
func (s *Service) List(ctx context.Context) ([]models.RegisteredUser, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Store("list roster", err)
	}
	if list == nil {
		list = []models.RegisteredUser{}
	}
	return list, nil
}

// Import adds emails to the roster. Invalid addresses are reported back, duplicates are skipped.
func (s *Service) Import(ctx context.Context, emails []string) (ImportResult, error) {
	var valid, rejected []string
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		n := models.NormalizeEmail(e)
		if !ValidEmail(n) {
			if n != "" {
				rejected = append(rejected, e)
			}
			continue
		}
		if !seen[n] {
			seen[n] = true
			valid = append(valid, n)
		}
	}
	if len(valid) == 0 {
		return ImportResult{}, apperr.Validation("emails", "no valid email addresses")
	}

	inserted, err := s.store.AddMany(ctx, valid)
	if err != nil {
		return ImportResult{}, apperr.Store("add roster", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return ImportResult{}, apperr.Store("count roster", err)
	}
	s.logger.Info("roster imported",
		zap.Int("inserted", inserted), zap.Int("total", total), zap.Int("rejected", len(rejected)))
	return ImportResult{InsertedCount: inserted, TotalCount: total, Rejected: rejected}, nil
}

// ImportCSV parses a roster file and imports it.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	emails, err := ParseEmails(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse roster: %w", err)
	}
	return s.Import(ctx, emails)
}

// Upload accepts a roster file. With an archive the file is stored and queued for the worker,
// otherwise it is parsed and imported immediately.
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader, requestedBy string) (UploadResult, error) {
	if !storage.ValidateRosterFile(filename) {
		return UploadResult{}, apperr.Validation("file", "must be a .csv, .tsv or .txt file")
	}
	data, err := io.ReadAll(io.LimitReader(body, storage.MaxRosterFileSize+1))
	if err != nil {
		return UploadResult{}, apperr.Validation("file", "could not read upload")
	}
	if len(data) > storage.MaxRosterFileSize {
		return UploadResult{}, apperr.Validation("file", "file exceeds 5MB")
	}

	if s.archive != nil && s.jobs != nil {
		res, err := s.enqueue(ctx, filename, data, requestedBy)
		if err == nil {
			return res, nil
		}
		s.logger.Warn("roster archive failed, importing inline", zap.String("filename", filename), zap.Error(err))
	}

	imp, err := s.ImportCSV(ctx, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Import: &imp}, nil
}

func (s *Service) enqueue(ctx context.Context, filename string, data []byte, requestedBy string) (UploadResult, error) {
	bucket := s.archive.RostersBucket()
	key := storage.RosterKey(filename, s.now())
	if err := s.archive.Upload(ctx, bucket, key, storage.ContentTypeForFilename(filename), bytes.NewReader(data), int64(len(data))); err != nil {
		return UploadResult{}, err
	}
	jobID, err := s.jobs.EnqueueRosterImport(ctx, queue.RosterImportPayload{
		Bucket:      bucket,
		Key:         key,
		Filename:    filename,
		RequestedBy: requestedBy,
	})
	if err != nil {
		s.discard(ctx, bucket, key)
		return UploadResult{}, err
	}
	s.logger.Info("roster upload queued", zap.String("job_id", jobID), zap.String("key", key))
	return UploadResult{JobID: jobID, Key: key}, nil
}

// discard removes an archived upload that no job will ever read.
func (s *Service) discard(ctx context.Context, bucket, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := s.archive.DeleteObject(ctx, bucket, key); err != nil {
		s.logger.Error("orphaned roster upload left in storage",
			zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
	}
}

// Delete removes one registered user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Store("delete registered user", err)
	}
	return nil
}

// Clear removes every registered user.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, apperr.Store("clear roster", err)
	}
	s.logger.Info("roster cleared", zap.Int64("deleted", n))
	return n, nil
}

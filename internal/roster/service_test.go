package roster

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/queue"
)

type memStore struct {
	mu     sync.Mutex
	users  []models.RegisteredUser
	nextID int64
	fail   error
}

func (m *memStore) IsRegistered(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) List(context.Context) ([]models.RegisteredUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.RegisteredUser(nil), m.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, m.fail
}

func (m *memStore) AddMany(ctx context.Context, emails []string) (int, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	n := 0
	for _, e := range emails {
		if ok, _ := m.IsRegistered(ctx, e); ok {
			continue
		}
		m.mu.Lock()
		m.nextID++
		m.users = append(m.users, models.RegisteredUser{ID: m.nextID, Email: e, CreatedAt: time.Now()})
		m.mu.Unlock()
		n++
	}
	return n, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *memStore) Clear(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.users))
	m.users = nil
	return n, nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

type memArchive struct {
	objects   map[string][]byte
	fail      error
	deleteErr error
	deleted   []string
}

func (a *memArchive) Upload(_ context.Context, bucket, key, _ string, body io.Reader, _ int64) error {
	if a.fail != nil {
		return a.fail
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	a.objects[bucket+"/"+key] = data
	return nil
}

func (a *memArchive) DeleteObject(_ context.Context, bucket, key string) error {
	a.deleted = append(a.deleted, bucket+"/"+key)
	if a.deleteErr != nil {
		return a.deleteErr
	}
	delete(a.objects, bucket+"/"+key)
	return nil
}

func (a *memArchive) RostersBucket() string { return "rosters" }

type memJobs struct {
	payloads []queue.RosterImportPayload
	fail     error
}

func (j *memJobs) EnqueueRosterImport(_ context.Context, p queue.RosterImportPayload) (string, error) {
	if j.fail != nil {
		return "", j.fail
	}
	j.payloads = append(j.payloads, p)
	return "job-1", nil
}

func TestImportNormalisesAndSkipsDuplicates(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil)
	ctx := context.Background()

	res, err := svc.Import(ctx, []string{" Anna@Example.com", "anna@example.com", "bob@example.com", "nope", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, res.InsertedCount)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, []string{"nope"}, res.Rejected)

	res, err = svc.Import(ctx, []string{"bob@example.com", "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedCount)
	assert.Equal(t, 3, res.TotalCount)

	ok, err := svc.IsRegistered(ctx, "  ANNA@example.com ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportRequiresAValidEmail(t *testing.T) {
	svc := NewService(&memStore{}, nil)
	_, err := svc.Import(context.Background(), []string{"bad", " "})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "emails", ve.Field)
}

func TestUploadInline(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil)

	res, err := svc.Upload(context.Background(), "guests.csv", strings.NewReader("email\na@example.com\nb@example.com\n"), "host@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Import)
	assert.Empty(t, res.JobID)
	assert.Equal(t, 2, res.Import.InsertedCount)
}

func TestUploadQueuesWhenArchived(t *testing.T) {
	store := &memStore{}
	archive := &memArchive{objects: map[string][]byte{}}
	jobs := &memJobs{}
	svc := NewService(store, nil).WithArchive(archive, jobs)

	body := "email\na@example.com\n"
	res, err := svc.Upload(context.Background(), "guests.csv", strings.NewReader(body), "host@example.com")
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.Nil(t, res.Import)
	require.Len(t, jobs.payloads, 1)
	assert.Equal(t, "rosters", jobs.payloads[0].Bucket)
	assert.Equal(t, res.Key, jobs.payloads[0].Key)
	assert.Equal(t, "host@example.com", jobs.payloads[0].RequestedBy)
	assert.Equal(t, []byte(body), archive.objects["rosters/"+res.Key])
	assert.Empty(t, store.users, "worker does the insert")
}

func TestUploadFallsBackInlineWhenArchiveFails(t *testing.T) {
	store := &memStore{}
	archive := &memArchive{objects: map[string][]byte{}, fail: errors.New("s3 down")}
	svc := NewService(store, nil).WithArchive(archive, &memJobs{})

	res, err := svc.Upload(context.Background(), "guests.csv", strings.NewReader("a@example.com\n"), "host@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Import)
	assert.Equal(t, 1, res.Import.InsertedCount)
}

func TestUploadRemovesArchivedFileWhenEnqueueFails(t *testing.T) {
	store := &memStore{}
	archive := &memArchive{objects: map[string][]byte{}}
	svc := NewService(store, nil).WithArchive(archive, &memJobs{fail: errors.New("redis down")})

	res, err := svc.Upload(context.Background(), "guests.csv", strings.NewReader("a@example.com\n"), "host@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Import, "falls back to the inline import")
	assert.Equal(t, 1, res.Import.InsertedCount)
	assert.Empty(t, res.Key)
	require.Len(t, archive.deleted, 1)
	assert.Empty(t, archive.objects, "no orphaned object is left behind")
}

func TestUploadSurvivesFailedCleanup(t *testing.T) {
	archive := &memArchive{objects: map[string][]byte{}, deleteErr: errors.New("s3 down")}
	svc := NewService(&memStore{}, nil).WithArchive(archive, &memJobs{fail: errors.New("redis down")})

	res, err := svc.Upload(context.Background(), "guests.csv", strings.NewReader("a@example.com\n"), "host@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Import)
	assert.Len(t, archive.deleted, 1)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	svc := NewService(&memStore{}, nil)
	_, err := svc.Upload(context.Background(), "guests.xlsx", strings.NewReader("a@example.com"), "")
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)

	big := bytes.Repeat([]byte("a"), 5*1024*1024+1)
	_, err = svc.Upload(context.Background(), "guests.csv", bytes.NewReader(big), "")
	_, ok = apperr.AsValidation(err)
	assert.True(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil)
	ctx := context.Background()
	_, err := svc.Import(ctx, []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1))
	assert.ErrorIs(t, svc.Delete(ctx, 1), apperr.ErrNotFound)

	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStoreFailureIsStoreError(t *testing.T) {
	svc := NewService(&memStore{fail: errors.New("db down")}, nil)
	var se *apperr.StoreError
	_, err := svc.IsRegistered(context.Background(), "a@example.com")
	assert.ErrorAs(t, err, &se)
}

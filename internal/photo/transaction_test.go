package photo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	uploads       []string
	failAll       bool
	failSubstring string
	removed       [][]string
}

func (s *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.uploads = append(s.uploads, key)
	if s.failAll {
		return fmt.Errorf("storage unavailable")
	}
	if s.failSubstring != "" && strings.Contains(key, s.failSubstring) {
		return fmt.Errorf("storage rejected %s", key)
	}
	return nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *fakeStore) Remove(ctx context.Context, keys []string) error {
	s.removed = append(s.removed, keys)
	return nil
}

type fakeMeta struct {
	insertCalls int
	failInserts int // fail the first N insert attempts
	failAll     bool
	batches     [][]Record
	deleted     []string
	deleteErr   error
}

func (m *fakeMeta) InsertPhotoBatch(ctx context.Context, records []Record) error {
	m.insertCalls++
	m.batches = append(m.batches, append([]Record{}, records...))
	if m.failAll || m.insertCalls <= m.failInserts {
		return fmt.Errorf("insert failed")
	}
	return nil
}

func (m *fakeMeta) DeleteRapport(ctx context.Context, rapportID string) error {
	m.deleted = append(m.deleted, rapportID)
	return m.deleteErr
}

func newTestManager(store ObjectStore, meta MetadataStore) (*Manager, *[]time.Duration) {
	m := NewManager(store, meta)
	slept := &[]time.Duration{}
	m.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	m.now = func() time.Time { return time.UnixMilli(1735000000000) }
	m.newID = func() string { return "batch-test" }
	return m, slept
}

func testPhoto(id, filename string) *Photo {
	return &Photo{
		ID:       id,
		Filename: filename,
		Data:     EncodeDataURL("image/jpeg", []byte("jpeg-bytes-"+id)),
	}
}

func TestUploadOne_SkipsAlreadyUploaded(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	p := testPhoto("p1", "site.jpg")
	p.StorageURL = "https://cdn.test/existing/p1.jpg"
	p.StoragePath = "existing/p1.jpg"

	result := m.UploadWithRetry(context.Background(), []Group{{Category: CategoryGenerales, Items: []*Photo{p}}}, "rap-1")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.InsertedCount)
	assert.Empty(t, store.uploads, "already uploaded photo must not hit the network")
	require.Len(t, meta.batches, 1)
	assert.Equal(t, "https://cdn.test/existing/p1.jpg", meta.batches[0][0].URL)
}

func TestUploadOne_BoundedRetry(t *testing.T) {
	store := &fakeStore{failAll: true}
	m, slept := newTestManager(store, &fakeMeta{})

	_, _, ok := m.uploadOne(context.Background(), testPhoto("p1", "a.jpg"), "rap-1", CategoryAvant)

	assert.False(t, ok)
	assert.Len(t, store.uploads, 3, "exactly 3 upload attempts")
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestUploadOne_NoData(t *testing.T) {
	store := &fakeStore{}
	m, _ := newTestManager(store, &fakeMeta{})

	_, _, ok := m.uploadOne(context.Background(), &Photo{ID: "empty"}, "rap-1", CategoryGenerales)

	assert.False(t, ok)
	assert.Empty(t, store.uploads)
}

func TestUploadWithRetry_InsertRetryCount(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{failAll: true}
	m, slept := newTestManager(store, meta)

	result := m.UploadWithRetry(context.Background(), []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
	}, "rap-1")

	assert.False(t, result.Success)
	assert.Equal(t, 4, meta.insertCalls, "initial attempt plus 3 retries")
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, *slept)
	assert.Equal(t, 0, result.InsertedCount)
	assert.Equal(t, 1, result.FailedCount, "records that were never committed count as failed")
}

func TestUploadWithRetry_AllSucceed(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	groups := []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
		{Category: CategoryAvant, Items: []*Photo{testPhoto("p2", "b.jpg")}},
		{Category: CategoryApres, Items: []*Photo{testPhoto("p3", "c.jpg")}},
		{Category: CategoryProblemes, Items: []*Photo{testPhoto("p4", "d.jpg")}},
	}

	result := m.UploadWithRetry(context.Background(), groups, "rap-1")

	require.True(t, result.Success)
	assert.Equal(t, 4, result.InsertedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Empty(t, result.Errors)
	require.Equal(t, 1, meta.insertCalls, "one batch insert for the whole transaction")
	require.Len(t, meta.batches[0], 4)
	assert.Equal(t, CategoryAvant, meta.batches[0][1].Category)
	for _, rec := range meta.batches[0] {
		assert.Equal(t, "batch-test", rec.BatchID)
		assert.Equal(t, "rap-1", rec.RapportID)
	}
}

func TestUploadWithRetry_EmptyBatch(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	for _, groups := range [][]Group{nil, {{Category: CategoryGenerales}, {Category: CategoryAvant}}} {
		result := m.UploadWithRetry(context.Background(), groups, "rap-1")
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.InsertedCount)
		assert.Equal(t, 0, result.FailedCount)
		assert.Empty(t, result.Errors)
	}
	assert.Empty(t, store.uploads)
	assert.Zero(t, meta.insertCalls)
}

func TestUploadWithRetry_PartialFailure(t *testing.T) {
	store := &fakeStore{failSubstring: "broken"}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	groups := []Group{
		{Category: CategoryGenerales, Items: []*Photo{
			testPhoto("p1", "a.jpg"),
			testPhoto("p2", "broken.jpg"),
			testPhoto("p3", "c.jpg"),
			testPhoto("p4", "d.jpg"),
		}},
	}

	result := m.UploadWithRetry(context.Background(), groups, "rap-1")

	assert.False(t, result.Success, "partial upload is reported as failure even though rows were written")
	assert.Equal(t, 3, result.InsertedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.jpg")
	assert.Contains(t, result.Errors[0], CategoryGenerales)
	require.Equal(t, 1, meta.insertCalls)
	assert.Len(t, meta.batches[0], 3)
}

func TestUploadWithRetry_AllUploadsFailSkipsInsert(t *testing.T) {
	store := &fakeStore{failAll: true}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	result := m.UploadWithRetry(context.Background(), []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
	}, "rap-1")

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.InsertedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Zero(t, meta.insertCalls, "no point attempting an empty insert")
}

func TestUploadWithRetry_RetriesReuseSameBatch(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{failInserts: 2}
	m, _ := newTestManager(store, meta)

	result := m.UploadWithRetry(context.Background(), []Group{
		{Category: CategoryApres, Items: []*Photo{testPhoto("p1", "a.jpg"), testPhoto("p2", "b.jpg")}},
	}, "rap-1")

	require.True(t, result.Success)
	require.Equal(t, 3, meta.insertCalls)
	for _, batch := range meta.batches {
		require.Len(t, batch, 2)
		assert.Equal(t, meta.batches[0][0].StoragePath, batch[0].StoragePath)
		assert.Equal(t, meta.batches[0][1].StoragePath, batch[1].StoragePath)
	}
}

func TestUploadWithRetry_GeolocationCopy(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	withGeo := testPhoto("p1", "a.jpg")
	withGeo.Geolocation = &GeoLocation{Latitude: 45.5017, Longitude: -73.5673, Accuracy: 12, Captured: true}
	noFix := testPhoto("p2", "b.jpg")
	noFix.Geolocation = &GeoLocation{Captured: false}

	result := m.UploadWithRetry(context.Background(), []Group{
		{Category: CategoryGenerales, Items: []*Photo{withGeo, noFix}},
	}, "rap-1")

	require.True(t, result.Success)
	recs := meta.batches[0]
	require.NotNil(t, recs[0].Latitude)
	assert.Equal(t, 45.5017, *recs[0].Latitude)
	assert.Equal(t, -73.5673, *recs[0].Longitude)
	assert.Equal(t, 12.0, *recs[0].GPSAccuracy)
	assert.Nil(t, recs[1].Latitude)
	assert.Nil(t, recs[1].Longitude)
	assert.Nil(t, recs[1].GPSAccuracy)
}

func TestExecute_Success(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{}
	m, _ := newTestManager(store, meta)

	result := m.Execute(context.Background(), []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
	}, "rap-1", TxOptions{RollbackOnFailure: true})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.InsertedCount)
	assert.False(t, result.RolledBack)
	assert.Empty(t, result.Errors)
	assert.Empty(t, meta.deleted)
}

func TestExecute_RollbackGating(t *testing.T) {
	groupsWithProblemes := []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
		{Category: CategoryProblemes, Items: []*Photo{testPhoto("p2", "b.jpg")}},
	}
	groupsWithout := []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
		{Category: CategoryProblemes},
	}

	cases := []struct {
		name       string
		groups     []Group
		opts       TxOptions
		wantDelete bool
	}{
		{"disabled never deletes", groupsWithProblemes, TxOptions{}, false},
		{"enabled with no critical list always deletes", groupsWithout, TxOptions{RollbackOnFailure: true}, true},
		{"critical category present deletes", groupsWithProblemes, TxOptions{RollbackOnFailure: true, CriticalCategories: []string{CategoryProblemes}}, true},
		{"critical category absent skips delete", groupsWithout, TxOptions{RollbackOnFailure: true, CriticalCategories: []string{CategoryProblemes}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			meta := &fakeMeta{failAll: true}
			m, _ := newTestManager(store, meta)

			result := m.Execute(context.Background(), tc.groups, "rap-1", tc.opts)

			assert.False(t, result.Success)
			assert.Equal(t, 0, result.InsertedCount)
			if tc.wantDelete {
				assert.Equal(t, []string{"rap-1"}, meta.deleted)
				assert.True(t, result.RolledBack)
			} else {
				assert.Empty(t, meta.deleted)
				assert.False(t, result.RolledBack)
			}
		})
	}
}

func TestExecute_RollbackFailureReported(t *testing.T) {
	store := &fakeStore{failAll: true}
	meta := &fakeMeta{failAll: true, deleteErr: fmt.Errorf("gone")}
	m, _ := newTestManager(store, meta)

	result := m.Execute(context.Background(), []Group{
		{Category: CategoryGenerales, Items: []*Photo{testPhoto("p1", "a.jpg")}},
	}, "rap-1", TxOptions{RollbackOnFailure: true})

	assert.False(t, result.Success)
	assert.False(t, result.RolledBack)
	assert.Equal(t, []string{"rap-1"}, meta.deleted)
}

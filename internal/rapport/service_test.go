package rapport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/database/repo/rapports"
	"github.com/dr-electrique/rapport-server/internal/photo"
)

type fakeStore struct {
	created   []*models.Rapport
	updated   []*models.Rapport
	totals    map[string]int
	byID      map[string]*models.Rapport
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		totals: map[string]int{},
		byID:   map[string]*models.Rapport{},
	}
}

func (f *fakeStore) Create(ctx context.Context, rapport *models.Rapport) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rapport)
	f.byID[rapport.ID] = rapport
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*models.Rapport, error) {
	if r, ok := f.byID[id]; ok {
		return r, nil
	}
	return nil, errors.New("record not found")
}

func (f *fakeStore) ListByRedacteur(ctx context.Context, redacteur string, limit int) ([]rapports.Summary, error) {
	return nil, nil
}

func (f *fakeStore) Update(ctx context.Context, rapport *models.Rapport) error {
	rapport.CurrentVersion++
	f.updated = append(f.updated, rapport)
	f.byID[rapport.ID] = rapport
	return nil
}

func (f *fakeStore) SetTotals(ctx context.Context, id string, totalPhotos int) error {
	f.totals[id] = totalPhotos
	return nil
}

type fakeTx struct {
	result photo.TxResult
	calls  int
	lastID string
}

func (f *fakeTx) Execute(ctx context.Context, groups []photo.Group, rapportID string, opts photo.TxOptions) photo.TxResult {
	f.calls++
	f.lastID = rapportID
	return f.result
}

func newTestService(store *fakeStore, tx *fakeTx) *Service {
	svc := NewService(store, tx, nil)
	svc.newID = func() string { return "rap-fixed" }
	return svc
}

func validRapport() *models.Rapport {
	return &models.Rapport{
		Projet:    "P-1042",
		Redacteur: "Marc",
		Date:      "2026-08-28",
		MainOeuvre: []models.WorkerEntry{
			{ID: "w1", Employe: "Marc", HeureDebut: "06:00", HeureFin: "14:15"},
		},
	}
}

func groupsWithPhotos(n int) []photo.Group {
	items := make([]*photo.Photo, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &photo.Photo{ID: "p", Data: "data:image/jpeg;base64,AAAA"})
	}
	return []photo.Group{{Category: photo.CategoryAvant, Items: items}}
}

func TestCalculateHours(t *testing.T) {
	assert.InDelta(t, 8.25, calculateHours("06:00", "14:15"), 1e-9)
	assert.Equal(t, 0.0, calculateHours("", "14:15"))
	assert.Equal(t, 0.0, calculateHours("14:00", "06:00"))
	assert.Equal(t, 0.0, calculateHours("abc", "def"))
}

func TestComputeTotals(t *testing.T) {
	r := &models.Rapport{
		MainOeuvre: []models.WorkerEntry{
			{Employe: "Marc", HeureDebut: "06:00", HeureFin: "14:15"},
			{Employe: "", HeureDebut: "", HeureFin: "14:15"}, // placeholder row
			{Employe: "Luc", HeureDebut: "07:00", HeureFin: "15:30"},
		},
		OrdresTravail: []models.WorkOrderEntry{
			{Description: "base", IsExtra: false},
			{Description: "extra 1", IsExtra: true, MontantExtra: "450.50"},
			{Description: "extra 2", IsExtra: true, MontantExtra: "n/a"},
		},
	}
	computeTotals(r, groupsWithPhotos(3))

	assert.InDelta(t, 16.75, r.TotalHeuresMO, 1e-9)
	assert.Equal(t, 3, r.TotalPhotos)
	assert.True(t, r.HasExtras)
	assert.Equal(t, 2, r.NbExtras)
	assert.InDelta(t, 450.50, r.TotalExtras, 1e-9)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeTx{})

	_, err := svc.Create(context.Background(), &models.Rapport{Projet: "P-1"}, nil)
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), &models.Rapport{Redacteur: "Marc"}, nil)
	assert.Error(t, err)
}

func TestCreateAssignsIDAndVersion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeTx{})

	created, err := svc.Create(context.Background(), validRapport(), nil)
	require.NoError(t, err)
	assert.Equal(t, "rap-fixed", created.ID)
	assert.Equal(t, 1, created.CurrentVersion)
	assert.InDelta(t, 8.25, created.TotalHeuresMO, 1e-9)
	require.Len(t, store.created, 1)
}

func TestSubmitComplete(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTx{result: photo.TxResult{Success: true, InsertedCount: 2}}
	svc := newTestService(store, tx)

	result, err := svc.Submit(context.Background(), validRapport(), groupsWithPhotos(2))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
	assert.Equal(t, "rap-fixed", result.RapportID)
	assert.Equal(t, "rap-fixed", tx.lastID)
	// counts matched, no adjustment needed
	assert.NotContains(t, store.totals, "rap-fixed")
}

func TestSubmitPartialAdjustsTotals(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTx{result: photo.TxResult{Success: false, InsertedCount: 0, Errors: []string{"x"}}}
	svc := newTestService(store, tx)

	result, err := svc.Submit(context.Background(), validRapport(), groupsWithPhotos(2))
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, 0, store.totals["rap-fixed"])
}

func TestSubmitRolledBack(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTx{result: photo.TxResult{Success: false, RolledBack: true, Errors: []string{"x"}}}
	svc := newTestService(store, tx)

	result, err := svc.Submit(context.Background(), validRapport(), groupsWithPhotos(2))
	assert.Error(t, err)
	assert.Equal(t, StatusRolledBack, result.Status)
}

func TestUpdatePreservesPhotoTotal(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeTx{})

	created, err := svc.Create(context.Background(), validRapport(), groupsWithPhotos(4))
	require.NoError(t, err)
	created.TotalPhotos = 4

	edited := validRapport()
	edited.ID = created.ID
	edited.NotesGenerales = "panneau remplacé"

	updated, err := svc.Update(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.TotalPhotos)
	assert.Equal(t, 2, updated.CurrentVersion)
}

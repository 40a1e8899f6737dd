package rapport

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/database/repo/rapports"
	"github.com/dr-electrique/rapport-server/internal/photo"
)

// Submission status values
const (
	StatusComplete   = "complete"
	StatusPartial    = "partial"
	StatusRolledBack = "rolled_back"
)

// Store is the rapport persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rapport *models.Rapport) error
	GetByID(ctx context.Context, id string) (*models.Rapport, error)
	ListByRedacteur(ctx context.Context, redacteur string, limit int) ([]rapports.Summary, error)
	Update(ctx context.Context, rapport *models.Rapport) error
	SetTotals(ctx context.Context, id string, totalPhotos int) error
}

// TxRunner runs the photo persistence transaction for one rapport.
type TxRunner interface {
	Execute(ctx context.Context, groups []photo.Group, rapportID string, opts photo.TxOptions) photo.TxResult
}

// SubmitResult is the outcome of one rapport submission.
type SubmitResult struct {
	RapportID string         `json:"rapport_id"`
	Status    string         `json:"status"`
	Photos    photo.TxResult `json:"photos"`
}

// Service owns the rapport lifecycle: create the row first, then run the
// photo transaction against it.
type Service struct {
	store     Store
	tx        TxRunner
	txOptions func() photo.TxOptions
	newID     func() string
}

// NewService 创建日报服务
func NewService(store Store, tx TxRunner, txOptions func() photo.TxOptions) *Service {
	if txOptions == nil {
		txOptions = func() photo.TxOptions { return photo.TxOptions{} }
	}
	return &Service{
		store:     store,
		tx:        tx,
		txOptions: txOptions,
		newID:     uuid.NewString,
	}
}

// Create persists a new rapport with recomputed totals.
func (s *Service) Create(ctx context.Context, rapport *models.Rapport, groups []photo.Group) (*models.Rapport, error) {
	if rapport.Redacteur == "" {
		return nil, fmt.Errorf("redacteur is required")
	}
	if rapport.Projet == "" {
		return nil, fmt.Errorf("projet is required")
	}

	if rapport.ID == "" {
		rapport.ID = s.newID()
	}
	rapport.CurrentVersion = 1
	computeTotals(rapport, groups)

	if err := s.store.Create(ctx, rapport); err != nil {
		return nil, err
	}
	return rapport, nil
}

// Submit creates the rapport, then persists its photos. The rapport row
// must exist before the photo rows reference it; if the photo transaction
// rolls back, the row is already gone and the submission failed as a
// whole. Any other photo failure leaves a partial rapport the client can
// retry against.
func (s *Service) Submit(ctx context.Context, rapport *models.Rapport, groups []photo.Group) (*SubmitResult, error) {
	created, err := s.Create(ctx, rapport, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to create rapport: %w", err)
	}

	txResult := s.tx.Execute(ctx, groups, created.ID, s.txOptions())

	result := &SubmitResult{
		RapportID: created.ID,
		Photos:    txResult,
	}

	switch {
	case txResult.RolledBack:
		result.Status = StatusRolledBack
		return result, fmt.Errorf("rapport %s rolled back after photo persistence failure", created.ID)

	case !txResult.Success:
		result.Status = StatusPartial
		log.Printf("[Rapport] rapport %s submitted with %d photo failures", created.ID, len(txResult.Errors))

	default:
		result.Status = StatusComplete
	}

	// Keep the denormalized photo count in line with what actually landed.
	if txResult.InsertedCount != created.TotalPhotos {
		if err := s.store.SetTotals(ctx, created.ID, txResult.InsertedCount); err != nil {
			log.Printf("[Rapport] failed to adjust photo total for %s: %v", created.ID, err)
		}
	}

	return result, nil
}

// Get loads one rapport.
func (s *Service) Get(ctx context.Context, id string) (*models.Rapport, error) {
	return s.store.GetByID(ctx, id)
}

// List returns rapport summaries for one redacteur.
func (s *Service) List(ctx context.Context, redacteur string, limit int) ([]rapports.Summary, error) {
	return s.store.ListByRedacteur(ctx, redacteur, limit)
}

// Update saves edits to an existing rapport and recomputes its totals.
// The photo total is left alone: photos are managed by their own
// transaction, not by form edits.
func (s *Service) Update(ctx context.Context, rapport *models.Rapport) (*models.Rapport, error) {
	existing, err := s.store.GetByID(ctx, rapport.ID)
	if err != nil {
		return nil, fmt.Errorf("rapport %s not found: %w", rapport.ID, err)
	}

	rapport.CreatedAt = existing.CreatedAt
	rapport.CurrentVersion = existing.CurrentVersion
	computeTotals(rapport, nil)
	rapport.TotalPhotos = existing.TotalPhotos

	if err := s.store.Update(ctx, rapport); err != nil {
		return nil, err
	}
	return rapport, nil
}

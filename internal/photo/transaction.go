package photo

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// UploadResult 批量上传结果
type UploadResult struct {
	Success       bool     `json:"success"`
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors"`
}

// TxResult 事务执行结果
type TxResult struct {
	Success       bool     `json:"success"`
	InsertedCount int      `json:"inserted_count"`
	RolledBack    bool     `json:"rolled_back"`
	Errors        []string `json:"errors"`
}

// TxOptions controls the compensating delete of the parent rapport.
// With a non-empty CriticalCategories list, rollback fires only when
// RollbackOnFailure is set and at least one critical category had photos
// present in the input batch. Presence, not failure attribution, is the
// trigger; this matches the form's observed behavior.
type TxOptions struct {
	RollbackOnFailure  bool     `json:"rollback_on_failure"`
	CriticalCategories []string `json:"critical_categories"`
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Manager 照片持久化事务管理器
// Uploads each photo of a batch to object storage and inserts one metadata
// row per uploaded photo in a single batch call, both with bounded retry.
// Holds no cross-call state; safe to call concurrently for different
// rapport ids.
type Manager struct {
	store  ObjectStore
	meta   MetadataStore
	delays RetrySchedule
	sleep  sleepFunc
	now    func() time.Time
	newID  func() string
}

// NewManager creates a transaction manager over the given stores.
func NewManager(store ObjectStore, meta MetadataStore) *Manager {
	return &Manager{
		store:  store,
		meta:   meta,
		delays: DefaultRetrySchedule(),
		sleep:  sleepContext,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// uploadWithBackoff attempts one object upload up to len(delays) times,
// sleeping delays[i] between attempt i and i+1. Every attempt's error is
// logged; the last one is returned after exhaustion.
func uploadWithBackoff(ctx context.Context, store ObjectStore, key string, data []byte, contentType string, delays RetrySchedule, sleep sleepFunc) error {
	var lastErr error
	for attempt := 0; attempt < len(delays); attempt++ {
		if err := store.Upload(ctx, key, data, contentType); err == nil {
			return nil
		} else {
			lastErr = err
			log.Printf("[PhotoTransaction] upload attempt %d failed for %s: %v", attempt+1, key, err)
		}
		if attempt < len(delays)-1 {
			if err := sleep(ctx, delays[attempt]); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// uploadOne persists a single photo's bytes. A photo whose StorageURL is
// already set is treated as uploaded and causes no network call. Returns
// the public URL and storage key, or ok=false after retry exhaustion or
// when the photo carries no data at all.
func (m *Manager) uploadOne(ctx context.Context, p *Photo, rapportID, category string) (url, key string, ok bool) {
	if p.StorageURL != "" {
		return p.StorageURL, p.StoragePath, true
	}

	source := p.Data
	if source == "" {
		source = p.Preview
	}
	if source == "" {
		return "", "", false
	}

	data, contentType, err := DecodeDataURL(source)
	if err != nil {
		log.Printf("[PhotoTransaction] photo %s has undecodable data: %v", p.ID, err)
		return "", "", false
	}

	name := p.Filename
	if name == "" {
		name = p.ID
	}
	key = ObjectKey(rapportID, category, name, m.now())

	if err := uploadWithBackoff(ctx, m.store, key, data, contentType, m.delays, m.sleep); err != nil {
		return "", "", false
	}
	return m.store.PublicURL(key), key, true
}

// buildRecords uploads every photo of every group sequentially, in the
// given order, and accumulates the metadata rows for the batch insert.
func (m *Manager) buildRecords(ctx context.Context, groups []Group, rapportID, batchID string) (records []Record, failedCount int, errs []string) {
	for _, group := range groups {
		for _, p := range group.Items {
			url, key, ok := m.uploadOne(ctx, p, rapportID, group.Category)
			if !ok {
				failedCount++
				name := p.Filename
				if name == "" {
					name = p.ID
				}
				errs = append(errs, fmt.Sprintf("failed to upload %s (%s)", name, group.Category))
				continue
			}

			rec := Record{
				RapportID:   rapportID,
				Category:    group.Category,
				URL:         url,
				StoragePath: key,
				BatchID:     batchID,
			}
			if geo := p.Geolocation; geo != nil && geo.Captured {
				lat, lng, acc := geo.Latitude, geo.Longitude, geo.Accuracy
				rec.Latitude, rec.Longitude, rec.GPSAccuracy = &lat, &lng, &acc
			}
			records = append(records, rec)
		}
	}
	return records, failedCount, errs
}

// UploadWithRetry uploads a grouped photo batch and batch-inserts the
// metadata rows of the photos that made it to storage. The records slice
// is captured once and re-submitted verbatim on every insert retry. Never
// returns an error: all failure information lives in the result.
func (m *Manager) UploadWithRetry(ctx context.Context, groups []Group, rapportID string) UploadResult {
	batchID := m.newID()
	records, uploadFailed, uploadErrs := m.buildRecords(ctx, groups, rapportID, batchID)

	if len(records) == 0 && uploadFailed == 0 {
		return UploadResult{Success: true, Errors: []string{}}
	}
	if len(records) == 0 {
		return UploadResult{Success: false, FailedCount: uploadFailed, Errors: uploadErrs}
	}

	errs := append([]string{}, uploadErrs...)

	attempts := len(m.delays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		err := m.meta.InsertPhotoBatch(ctx, records)
		if err == nil {
			log.Printf("[PhotoTransaction] insert succeeded on attempt %d, %d records (batch %s)",
				attempt+1, len(records), batchID)
			return UploadResult{
				Success:       uploadFailed == 0,
				InsertedCount: len(records),
				FailedCount:   uploadFailed,
				Errors:        errs,
			}
		}

		errs = append(errs, fmt.Sprintf("DB insert attempt %d: %v", attempt+1, err))
		log.Printf("[PhotoTransaction] insert attempt %d failed: %v", attempt+1, err)

		if attempt < len(m.delays) {
			if serr := m.sleep(ctx, m.delays[attempt]); serr != nil {
				break
			}
		}
	}

	log.Printf("[PhotoTransaction] all insert attempts exhausted for rapport %s", rapportID)
	return UploadResult{
		Success:       false,
		InsertedCount: 0,
		FailedCount:   len(records) + uploadFailed,
		Errors:        errs,
	}
}

// Rollback deletes the parent rapport by id. The remote schema is assumed
// to cascade the delete to any already-inserted photo rows. Logged, never
// thrown.
func (m *Manager) Rollback(ctx context.Context, rapportID string) bool {
	if err := m.meta.DeleteRapport(ctx, rapportID); err != nil {
		log.Printf("[PhotoTransaction] rollback of rapport %s failed: %v", rapportID, err)
		return false
	}
	log.Printf("[PhotoTransaction] rolled back rapport %s", rapportID)
	return true
}

// Execute runs the full photo persistence transaction and, on failure,
// applies the rollback policy from opts.
func (m *Manager) Execute(ctx context.Context, groups []Group, rapportID string, opts TxOptions) TxResult {
	result := m.UploadWithRetry(ctx, groups, rapportID)

	if result.Success {
		return TxResult{
			Success:       true,
			InsertedCount: result.InsertedCount,
			Errors:        []string{},
		}
	}

	shouldRollback := opts.RollbackOnFailure
	if len(opts.CriticalCategories) > 0 {
		shouldRollback = opts.RollbackOnFailure && hasCriticalPhotos(groups, opts.CriticalCategories)
	}

	rolledBack := false
	if shouldRollback {
		rolledBack = m.Rollback(ctx, rapportID)
	}

	return TxResult{
		Success:       false,
		InsertedCount: 0,
		RolledBack:    rolledBack,
		Errors:        result.Errors,
	}
}

func hasCriticalPhotos(groups []Group, critical []string) bool {
	for _, group := range groups {
		if len(group.Items) == 0 {
			continue
		}
		for _, c := range critical {
			if group.Category == c {
				return true
			}
		}
	}
	return false
}

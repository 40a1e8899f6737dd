package photo

import (
	"context"
	"time"
)

// Photo categories, fixed by the rapport form. The category decides the
// storage sub-path and the value written to the metadata row.
const (
	CategoryGenerales = "generales"
	CategoryAvant     = "avant"
	CategoryApres     = "apres"
	CategoryProblemes = "problemes"
)

// GeoLocation 照片拍摄位置
// Captured=false means no fix was obtained (permission denied, timeout);
// coordinate fields are meaningless in that case and persist as NULL.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Captured  bool    `json:"captured"`
}

// Metadata 压缩统计信息 informational only
type Metadata struct {
	OriginalSize     int64  `json:"original_size"`
	CompressedSize   int64  `json:"compressed_size"`
	CompressionRatio string `json:"compression_ratio"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
}

// Photo is a client-side photo draft, transient until the transaction
// manager persists it. Data and Preview are data-URLs of the compressed
// JPEG; Data may instead hold the remote URL once an eager upload succeeded.
type Photo struct {
	ID          string       `json:"id"`
	Data        string       `json:"data,omitempty"`
	Preview     string       `json:"preview,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	Category    string       `json:"category"`
	Timestamp   string       `json:"timestamp,omitempty"`
	StoragePath string       `json:"storage_path,omitempty"`
	StorageURL  string       `json:"storage_url,omitempty"`
	Geolocation *GeoLocation `json:"geolocation,omitempty"`
	Metadata    *Metadata    `json:"metadata,omitempty"`
}

// Group 按类别分组的照片批次
type Group struct {
	Category string   `json:"category"`
	Items    []*Photo `json:"items"`
}

// Record is one metadata row to be inserted for a successfully uploaded
// photo. Coordinate fields are nullable independently. BatchID is stamped
// by the manager so that insert retries stay idempotent on the store side.
type Record struct {
	RapportID   string
	Category    string
	URL         string
	StoragePath string
	Latitude    *float64
	Longitude   *float64
	GPSAccuracy *float64
	BatchID     string
}

// ObjectStore 对象存储客户端 narrow view used by the pipeline
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
	Remove(ctx context.Context, keys []string) error
}

// MetadataStore 照片元数据表客户端
type MetadataStore interface {
	InsertPhotoBatch(ctx context.Context, records []Record) error
	DeleteRapport(ctx context.Context, rapportID string) error
}

// RetrySchedule 固定退避序列 shared by upload and insert retries.
type RetrySchedule []time.Duration

// DefaultRetrySchedule is 1s/2s/4s: per-photo uploads get len(schedule)
// attempts, the batch insert gets len(schedule)+1.
func DefaultRetrySchedule() RetrySchedule {
	return RetrySchedule{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

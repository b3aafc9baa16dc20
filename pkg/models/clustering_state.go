package models

import (
	"time"

	"github.com/google/uuid"
)

// ClusteringState is the per-tenant watermark. LastProcessedAt only ever
// advances; SegmentsProcessed is the count from the most recent run.
type ClusteringState struct {
	TenantID          uuid.UUID `db:"tenant_id"          json:"tenant_id"`
	LastProcessedAt   time.Time `db:"last_processed_at"  json:"last_processed_at"`
	SegmentsProcessed int       `db:"segments_processed" json:"segments_processed"`
	UpdatedAt         time.Time `db:"updated_at"         json:"updated_at"`
}

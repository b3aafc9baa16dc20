// Package models contains shared data models used across the SessionLens codebase.
package models

import "time"

// Segment is one clustering input unit: a span of session text with its
// embedding vector. Segments are produced by the upstream embedding pipeline
// and are read-only to this service.
type Segment struct {
	DocumentID string            `json:"document_id"`
	SessionID  string            `json:"session_id"`
	DistinctID string            `json:"distinct_id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding"`
	Timestamp  time.Time         `json:"timestamp"`
	StartTime  int64             `json:"start_time"` // ms offset within the session
	EndTime    int64             `json:"end_time"`
	Impact     ImpactAnnotation  `json:"impact"`
}

// ImpactAnnotation carries per-segment prioritization signals alongside a
// Segment through the pipeline.
type ImpactAnnotation struct {
	ImpactScore         float64 `json:"impact_score"`
	FailureDetected     bool    `json:"failure_detected"`
	ConfusionDetected   bool    `json:"confusion_detected"`
	AbandonmentDetected bool    `json:"abandonment_detected"`
}

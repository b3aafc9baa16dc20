package models

import "fmt"

// ClusterID identifies a cluster within a single pipeline run. Noise
// (unclustered) segments carry no ClusterID. The type exists so run-local
// cluster identifiers cannot be confused with array positions or issue ids
// when clusters are filtered or reordered between steps.
type ClusterID int

func (id ClusterID) String() string {
	return fmt.Sprintf("cluster-%d", int(id))
}

// Cluster is a transient group of segments produced by one clustering run.
// The centroid is the arithmetic mean of member embeddings in the original
// (non-reduced) embedding space.
type Cluster struct {
	ID         ClusterID
	SegmentIDs []string
	Size       int
	Centroid   []float32
}

// ClusterLabel is the human-readable title and description generated for a
// new cluster, either by a label provider or by the deterministic fallback.
type ClusterLabel struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

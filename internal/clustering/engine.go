// Package clustering groups session segments into dense clusters of similar
// embeddings. Reduction and clustering are deterministic: identical input and
// identical hyperparameters always yield identical clusters.
package clustering

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kiranshivaraju/sessionlens/pkg/models"
	"github.com/kiranshivaraju/sessionlens/pkg/vectormath"
)

// Params holds clustering hyperparameters.
type Params struct {
	// Epsilon is the cosine-distance neighborhood radius in the reduced space.
	Epsilon float64
	// MinClusterSize is the minimum number of segments a cluster must have;
	// segments that cannot form such a group are noise.
	MinClusterSize int
	// ReduceDim, when > 0 and smaller than the embedding dimension, enables
	// random-projection reduction before density estimation.
	ReduceDim int
	// ReduceSeed seeds the projection matrix.
	ReduceSeed int64
}

// Engine runs the clustering step of the pipeline.
type Engine struct {
	params Params
}

// NewEngine creates a clustering engine with the given hyperparameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Cluster assigns segments to density clusters and returns the clusters
// (centroids in the original embedding space) plus the per-segment
// assignment keyed by document id. Noise segments appear in no cluster and
// have no assignment entry. Zero clusters is a valid outcome.
//
// Segments with a missing embedding or a dimension differing from the first
// valid segment are skipped with a warning; a bad segment never aborts the
// run.
func (e *Engine) Cluster(segments []models.Segment) ([]models.Cluster, map[string]models.ClusterID, error) {
	valid := make([]models.Segment, 0, len(segments))
	dim := 0
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			slog.Warn("skipping segment without embedding", "document_id", seg.DocumentID)
			continue
		}
		if dim == 0 {
			dim = len(seg.Embedding)
		}
		if len(seg.Embedding) != dim {
			slog.Warn("skipping segment with mismatched embedding dimension",
				"document_id", seg.DocumentID,
				"dimension", len(seg.Embedding),
				"expected", dim,
			)
			continue
		}
		valid = append(valid, seg)
	}

	assignments := make(map[string]models.ClusterID)
	if len(valid) == 0 {
		return []models.Cluster{}, assignments, nil
	}

	embeddings := make([][]float32, len(valid))
	for i, seg := range valid {
		embeddings[i] = seg.Embedding
	}

	reduced, err := e.reduce(embeddings, dim)
	if err != nil {
		return nil, nil, fmt.Errorf("reducing embeddings: %w", err)
	}

	labels := dbscan(reduced, e.params.Epsilon, e.params.MinClusterSize)

	// Group members per label; labels are already dense, in first-appearance
	// order, with noise excluded.
	members := make(map[int][]int)
	for i, label := range labels {
		if label == noiseLabel {
			continue
		}
		members[label] = append(members[label], i)
	}

	clusters := make([]models.Cluster, 0, len(members))
	for label, idxs := range members {
		segmentIDs := make([]string, len(idxs))
		originals := make([][]float32, len(idxs))
		for i, idx := range idxs {
			segmentIDs[i] = valid[idx].DocumentID
			originals[i] = valid[idx].Embedding
		}

		id := models.ClusterID(label)
		clusters = append(clusters, models.Cluster{
			ID:         id,
			SegmentIDs: segmentIDs,
			Size:       len(idxs),
			Centroid:   vectormath.Centroid(originals),
		})
		for _, sid := range segmentIDs {
			assignments[sid] = id
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].ID < clusters[j].ID
	})

	return clusters, assignments, nil
}

// reduce applies random projection when configured and the input dimension
// warrants it, otherwise passes embeddings through unchanged.
func (e *Engine) reduce(embeddings [][]float32, dim int) ([][]float32, error) {
	if e.params.ReduceDim <= 0 || dim <= e.params.ReduceDim {
		return IdentityReducer{}.Reduce(embeddings)
	}
	proj, err := NewGaussianProjection(dim, e.params.ReduceDim, e.params.ReduceSeed)
	if err != nil {
		return nil, err
	}
	return proj.Reduce(embeddings)
}

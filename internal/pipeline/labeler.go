package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

const fallbackDescriptionLen = 400

// maxConcurrentLabels caps in-flight provider calls within one run.
const maxConcurrentLabels = 4

// Labeler produces a title and description for each new cluster by sampling
// member contents and asking the configured provider. Provider failures are
// isolated per cluster: the affected cluster gets a deterministic fallback
// label and the run continues.
type Labeler struct {
	provider   models.LabelProvider
	timeout    time.Duration
	sampleSize int
}

func NewLabeler(provider models.LabelProvider, timeout time.Duration, sampleSize int) *Labeler {
	return &Labeler{provider: provider, timeout: timeout, sampleSize: sampleSize}
}

// GenerateLabels labels every cluster with one provider call per cluster,
// at most maxConcurrentLabels in flight. segments maps document id to its
// segment.
func (l *Labeler) GenerateLabels(ctx context.Context, clusters []models.Cluster, segments map[string]models.Segment) map[models.ClusterID]models.ClusterLabel {
	labels := make(map[models.ClusterID]models.ClusterLabel, len(clusters))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentLabels)
	)
	for _, cluster := range clusters {
		wg.Add(1)
		sem <- struct{}{}
		go func(cluster models.Cluster) {
			defer wg.Done()
			defer func() { <-sem }()
			label := l.labelCluster(ctx, cluster, segments)
			mu.Lock()
			labels[cluster.ID] = label
			mu.Unlock()
		}(cluster)
	}
	wg.Wait()

	return labels
}

func (l *Labeler) labelCluster(ctx context.Context, cluster models.Cluster, segments map[string]models.Segment) models.ClusterLabel {
	sample := l.sampleSegments(cluster, segments)
	if len(sample) == 0 {
		return fallbackLabel(cluster, sample)
	}

	labelCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	label, err := l.provider.GenerateLabel(labelCtx, sample)
	if err != nil {
		slog.Warn("label generation failed, using fallback",
			"cluster", cluster.ID.String(),
			"provider", l.provider.Name(),
			"error", err)
		return fallbackLabel(cluster, sample)
	}
	return label
}

// sampleSegments returns up to sampleSize member segments, in member order.
func (l *Labeler) sampleSegments(cluster models.Cluster, segments map[string]models.Segment) []models.Segment {
	sample := make([]models.Segment, 0, l.sampleSize)
	for _, id := range cluster.SegmentIDs {
		seg, ok := segments[id]
		if !ok || seg.Content == "" {
			continue
		}
		sample = append(sample, seg)
		if len(sample) >= l.sampleSize {
			break
		}
	}
	return sample
}

// fallbackLabel is deterministic for a given cluster and sample.
func fallbackLabel(cluster models.Cluster, sample []models.Segment) models.ClusterLabel {
	label := models.ClusterLabel{
		Title: fmt.Sprintf("Session issue %d (%d segments)", int(cluster.ID)+1, cluster.Size),
	}
	if len(sample) > 0 {
		label.Description = truncateString(sample[0].Content, fallbackDescriptionLen)
	}
	return label
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

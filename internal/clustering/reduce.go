package clustering

import (
	"fmt"
	"math"
	"math/rand"
)

// Reducer lowers embedding dimensionality before density estimation. The
// reduced space is used only for cluster assignment; reported centroids are
// always computed from the original embeddings.
type Reducer interface {
	Reduce(vectors [][]float32) ([][]float32, error)
}

// IdentityReducer passes vectors through unchanged. Used when the input
// dimensionality is already small enough for density estimation.
type IdentityReducer struct{}

func (IdentityReducer) Reduce(vectors [][]float32) ([][]float32, error) {
	return vectors, nil
}

// GaussianProjection is a random linear projection with entries drawn from
// N(0, 1/outputDim). The matrix is generated once from an explicit seed, so
// identical inputs and hyperparameters always produce identical reductions.
type GaussianProjection struct {
	inputDim  int
	outputDim int
	matrix    [][]float64 // outputDim x inputDim
}

// NewGaussianProjection builds a seeded projection from inputDim to outputDim.
func NewGaussianProjection(inputDim, outputDim int, seed int64) (*GaussianProjection, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("projection dimensions must be positive, got %dx%d", inputDim, outputDim)
	}
	if outputDim >= inputDim {
		return nil, fmt.Errorf("output dimension %d must be smaller than input dimension %d", outputDim, inputDim)
	}

	rng := rand.New(rand.NewSource(seed))
	scale := 1.0 / math.Sqrt(float64(outputDim))

	matrix := make([][]float64, outputDim)
	for i := range matrix {
		row := make([]float64, inputDim)
		for j := range row {
			row[j] = rng.NormFloat64() * scale
		}
		matrix[i] = row
	}

	return &GaussianProjection{
		inputDim:  inputDim,
		outputDim: outputDim,
		matrix:    matrix,
	}, nil
}

func (p *GaussianProjection) Reduce(vectors [][]float32) ([][]float32, error) {
	out := make([][]float32, len(vectors))
	for vi, v := range vectors {
		if len(v) != p.inputDim {
			return nil, fmt.Errorf("vector %d has dimension %d, projection expects %d", vi, len(v), p.inputDim)
		}
		reduced := make([]float32, p.outputDim)
		for i, row := range p.matrix {
			var sum float64
			for j := range row {
				sum += row[j] * float64(v[j])
			}
			reduced[i] = float32(sum)
		}
		out[vi] = reduced
	}
	return out, nil
}

var (
	_ Reducer = IdentityReducer{}
	_ Reducer = (*GaussianProjection)(nil)
)

// Package optim provides gradient-based training helpers for nn networks:
// losses, optimizers and learning-rate schedulers.
package optim

import (
	"math"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

var (
	_ nn.Loss = MSE{}
	_ nn.Loss = CrossEntropy{}
)

// MSE is the mean squared error.
type MSE struct{}

func (MSE) Loss(expected, actual []float64) float64 {
	if len(expected) == 0 {
		return 0
	}
	total := 0.0
	for i := range expected {
		d := actual[i] - expected[i]
		total += d * d
	}
	return total / float64(len(expected))
}

func (MSE) Backward(expected, actual []float64) []float64 {
	grad := make([]float64, len(expected))
	scale := 2 / math.Max(1, float64(len(expected)))
	for i := range expected {
		grad[i] = scale * (actual[i] - expected[i])
	}
	return grad
}

// CrossEntropy is the categorical cross entropy of a probability vector,
// usually the output of a softmax layer.
type CrossEntropy struct{}

const probabilityFloor = 1e-12

func (CrossEntropy) Loss(expected, actual []float64) float64 {
	total := 0.0
	for i := range expected {
		total -= expected[i] * math.Log(math.Max(actual[i], probabilityFloor))
	}
	return total
}

func (CrossEntropy) Backward(expected, actual []float64) []float64 {
	grad := make([]float64, len(expected))
	for i := range expected {
		grad[i] = -expected[i] / math.Max(actual[i], probabilityFloor)
	}
	return grad
}

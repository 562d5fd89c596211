package optim

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/baldhumanity/hyperneat-go/neat/internal/jsonnum"
)

// Scheduler adjusts a learning rate once per epoch.
type Scheduler interface {
	// Next returns the learning rate to use for epoch given the current one.
	// Trainer calls it after each finished epoch with the number of epochs
	// finished so far.
	Next(lr float64, epoch int) float64
}

// RateSetter is implemented by optimizers a Scheduler can drive.
type RateSetter interface {
	SetLearningRate(lr float64)
}

// ConstantLR never changes the learning rate.
type ConstantLR struct{}

func (ConstantLR) Next(lr float64, _ int) float64 { return lr }

// StepLR multiplies the learning rate by Gamma at every epoch that is a
// multiple of StepSize, epoch 0 included.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR returns a StepLR. stepSize must be positive.
func NewStepLR(stepSize int, gamma float64) (StepLR, error) {
	if stepSize <= 0 {
		return StepLR{}, fmt.Errorf("step size must be positive, got %d", stepSize)
	}
	return StepLR{StepSize: stepSize, Gamma: gamma}, nil
}

func (s StepLR) Next(lr float64, epoch int) float64 {
	if s.StepSize > 0 && epoch%s.StepSize == 0 {
		return lr * s.Gamma
	}
	return lr
}

type stepLRJSON struct {
	StepSize string  `json:"stepSize"`
	Gamma    float64 `json:"gamma"`
}

// MarshalJSON writes the step size as a decimal string.
func (s StepLR) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepLRJSON{StepSize: jsonnum.Format(s.StepSize), Gamma: s.Gamma})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StepLR) UnmarshalJSON(data []byte) error {
	var j stepLRJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	size, err := jsonnum.Parse(j.StepSize)
	if err != nil {
		return err
	}
	*s = StepLR{StepSize: size, Gamma: j.Gamma}
	return nil
}

// ExponentialLR multiplies the learning rate by Gamma every epoch, never
// going below Min.
type ExponentialLR struct {
	Gamma float64 `json:"gamma"`
	Min   float64 `json:"min"`
}

func (s ExponentialLR) Next(lr float64, epoch int) float64 {
	if epoch <= 0 {
		return lr
	}
	return math.Max(s.Min, lr*s.Gamma)
}

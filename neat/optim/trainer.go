package optim

import (
	"fmt"
	"log/slog"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

// Sample is one supervised training pair.
type Sample struct {
	Inputs   []float64
	Expected []float64
}

// Trainer runs epochs of per-sample updates over a network.
type Trainer struct {
	Loss         nn.Loss
	Optimizer    nn.Optimizer
	Scheduler    Scheduler
	LearningRate float64
	// Sequence keeps samples in order and clears context neurons at the start
	// of every epoch, for recurrent networks trained on a time series.
	Sequence bool
	Logger   *slog.Logger
}

// Fit trains net for the given number of epochs and returns the mean loss of
// each epoch.
func (t *Trainer) Fit(net *nn.NeuralNetwork, samples []Sample, epochs int) ([]float64, error) {
	if t.Loss == nil || t.Optimizer == nil {
		return nil, fmt.Errorf("trainer needs a loss and an optimizer")
	}
	scheduler := t.Scheduler
	if scheduler == nil {
		scheduler = ConstantLR{}
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lr := t.LearningRate
	setRate := func() {
		if setter, ok := t.Optimizer.(RateSetter); ok && lr > 0 {
			setter.SetLearningRate(lr)
		}
	}
	setRate()
	history := make([]float64, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		if t.Sequence {
			net.ResetContext()
		}
		total := 0.0
		for i, s := range samples {
			loss, err := net.Train(s.Inputs, s.Expected, t.Loss, t.Optimizer)
			if err != nil {
				return history, fmt.Errorf("epoch %d sample %d: %w", epoch, i, err)
			}
			total += loss
		}
		mean := 0.0
		if len(samples) > 0 {
			mean = total / float64(len(samples))
		}
		history = append(history, mean)
		logger.Debug("epoch finished", "epoch", epoch, "loss", mean, "lr", lr)

		lr = scheduler.Next(lr, epoch+1)
		setRate()
	}
	return history, nil
}

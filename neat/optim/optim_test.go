package optim

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

func TestConstantLR(t *testing.T) {
	s := ConstantLR{}
	for _, epoch := range []int{0, 1, 10, 99, 1000} {
		assert.Equal(t, 0.05, s.Next(0.05, epoch))
	}
}

func TestStepLR(t *testing.T) {
	s, err := NewStepLR(10, 0.1)
	require.NoError(t, err)

	for epoch := 0; epoch < 40; epoch++ {
		if epoch%10 == 0 {
			assert.Equal(t, 1.0*0.1, s.Next(1.0, epoch), "epoch %d", epoch)
		} else {
			assert.Equal(t, 1.0, s.Next(1.0, epoch), "epoch %d", epoch)
		}
	}

	_, err = NewStepLR(0, 0.1)
	assert.Error(t, err)
}

func TestStepLRJSON(t *testing.T) {
	s := StepLR{StepSize: 10, Gamma: 0.5}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stepSize":"10","gamma":0.5}`, string(data))

	var loaded StepLR
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, s, loaded)

	assert.Error(t, json.Unmarshal([]byte(`{"stepSize":"ten","gamma":0.5}`), &loaded))
}

func TestExponentialLR(t *testing.T) {
	s := ExponentialLR{Gamma: 0.5, Min: 0.3}
	assert.Equal(t, 1.0, s.Next(1.0, 0))
	assert.Equal(t, 0.5, s.Next(1.0, 1))
	assert.Equal(t, 0.3, s.Next(0.5, 2))
}

func TestLossGradients(t *testing.T) {
	expected := []float64{0, 1, 0}
	actual := []float64{0.2, 0.7, 0.1}
	for name, loss := range map[string]nn.Loss{"mse": MSE{}, "xent": CrossEntropy{}} {
		t.Run(name, func(t *testing.T) {
			numeric := fd.Gradient(nil, func(x []float64) float64 {
				return loss.Loss(expected, x)
			}, actual, &fd.Settings{Formula: fd.Central})
			analytic := loss.Backward(expected, actual)
			for i := range actual {
				assert.InDelta(t, numeric[i], analytic[i], 1e-4)
			}
		})
	}
}

func TestAdamJSONRoundTrip(t *testing.T) {
	x, g := 1.0, 0.5
	opt := NewAdam(0.01)
	opt.Step([]nn.Parameter{{Value: &x, Gradient: &g}})

	data, err := json.Marshal(opt)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"t":"1"`)

	var loaded Adam
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, *opt, loaded)
}

func TestTrainerLearnsLinearMap(t *testing.T) {
	samples := []Sample{
		{Inputs: []float64{0}, Expected: []float64{1}},
		{Inputs: []float64{1}, Expected: []float64{3}},
		{Inputs: []float64{2}, Expected: []float64{5}},
	}
	for name, opt := range map[string]nn.Optimizer{"sgd": NewSGD(0.05, 0.5), "adam": NewAdam(0.05)} {
		t.Run(name, func(t *testing.T) {
			net, err := nn.NewFeedForward(rand.New(rand.NewSource(1)), []int{1, 1}, nn.Identity, nn.Identity)
			require.NoError(t, err)
			trainer := Trainer{Loss: MSE{}, Optimizer: opt, LearningRate: 0.05}
			history, err := trainer.Fit(net, samples, 300)
			require.NoError(t, err)
			require.Len(t, history, 300)
			assert.Less(t, history[len(history)-1], history[0])
			assert.Less(t, history[len(history)-1], 5e-2)
		})
	}
}

func TestTrainerRequiresLossAndOptimizer(t *testing.T) {
	_, err := (&Trainer{}).Fit(nil, nil, 1)
	assert.Error(t, err)
}

func TestTrainerStepsScheduleAfterEachEpoch(t *testing.T) {
	net, err := nn.NewFeedForward(rand.New(rand.NewSource(2)), []int{1, 1}, nn.Identity, nn.Identity)
	require.NoError(t, err)
	sgd := NewSGD(0.4, 0)
	scheduler, err := NewStepLR(2, 0.5)
	require.NoError(t, err)
	trainer := Trainer{Loss: MSE{}, Optimizer: sgd, Scheduler: scheduler, LearningRate: 0.4}

	_, err = trainer.Fit(net, []Sample{{Inputs: []float64{0.1}, Expected: []float64{0.2}}}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, sgd.LearningRate, 1e-12, "first epoch runs at the initial rate")

	trainer.LearningRate = sgd.LearningRate
	_, err = trainer.Fit(net, []Sample{{Inputs: []float64{0.1}, Expected: []float64{0.2}}}, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, sgd.LearningRate, 1e-12)
}

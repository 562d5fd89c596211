package optim

import (
	"encoding/json"
	"math"

	"github.com/baldhumanity/hyperneat-go/neat/nn"
)

var (
	_ nn.Optimizer = (*SGD)(nil)
	_ nn.Optimizer = (*Adam)(nil)
)

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	LearningRate float64   `json:"learningRate"`
	Momentum     float64   `json:"momentum"`
	Velocity     []float64 `json:"velocity"`
}

// NewSGD returns an SGD optimizer.
func NewSGD(learningRate, momentum float64) *SGD {
	return &SGD{LearningRate: learningRate, Momentum: momentum}
}

// Step applies one update. The velocity buffer is reset when the number of
// parameters changes, which happens after structural edits.
func (o *SGD) Step(params []nn.Parameter) {
	if len(o.Velocity) != len(params) {
		o.Velocity = make([]float64, len(params))
	}
	for i, p := range params {
		o.Velocity[i] = o.Momentum*o.Velocity[i] - o.LearningRate**p.Gradient
		*p.Value += o.Velocity[i]
	}
}

// SetLearningRate lets a Scheduler drive the optimizer.
func (o *SGD) SetLearningRate(lr float64) { o.LearningRate = lr }

// Adam implements the Adam optimizer.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m []float64
	v []float64
}

// NewAdam returns Adam with the usual defaults for the decay rates.
func NewAdam(learningRate float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Step applies one update.
func (o *Adam) Step(params []nn.Parameter) {
	if len(o.m) != len(params) {
		o.m = make([]float64, len(params))
		o.v = make([]float64, len(params))
		o.t = 0
	}
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, p := range params {
		g := *p.Gradient
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g*g
		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		*p.Value -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Epsilon)
	}
}

// SetLearningRate lets a Scheduler drive the optimizer.
func (o *Adam) SetLearningRate(lr float64) { o.LearningRate = lr }

type adamJSON struct {
	LearningRate float64   `json:"learningRate"`
	Beta1        float64   `json:"beta1"`
	Beta2        float64   `json:"beta2"`
	Epsilon      float64   `json:"epsilon"`
	T            int       `json:"t,string"`
	M            []float64 `json:"m"`
	V            []float64 `json:"v"`
}

// MarshalJSON writes hyperparameters and moment estimates.
func (o *Adam) MarshalJSON() ([]byte, error) {
	return json.Marshal(adamJSON{
		LearningRate: o.LearningRate,
		Beta1:        o.Beta1,
		Beta2:        o.Beta2,
		Epsilon:      o.Epsilon,
		T:            o.t,
		M:            o.m,
		V:            o.v,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Adam) UnmarshalJSON(data []byte) error {
	var j adamJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*o = Adam{
		LearningRate: j.LearningRate,
		Beta1:        j.Beta1,
		Beta2:        j.Beta2,
		Epsilon:      j.Epsilon,
		t:            j.T,
		m:            j.M,
		v:            j.V,
	}
	return nil
}

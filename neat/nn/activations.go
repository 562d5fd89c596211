package nn

import (
	"fmt"
	"math"
	"strings"
)

// ActivationType identifies a neuron activation function.
type ActivationType int

const (
	Identity ActivationType = iota
	Sigmoid
	Tanh
	ReLU
	LeakyReLU
	ELU
	SELU
	Softplus
	Softsign
	Swish
	Gaussian
	Sine
	Cosine
	Absolute
	Square
	Cube
	Step
	HardSigmoid
	HardTanh
	Inverse
	// Softmax normalizes a whole output layer. Per neuron it behaves like
	// Identity; the network applies the normalization once every output sum
	// is known.
	Softmax
)

const (
	leakySlope = 0.01
	seluAlpha  = 1.6732632423543772
	seluScale  = 1.0507009873554805
)

type activationFunc struct {
	name       string
	fn         func(x float64) float64
	derivative func(x float64) float64
}

// activationFunctions maps every ActivationType to its function pair.
// This allows configuration to specify activations by name.
var activationFunctions = map[ActivationType]activationFunc{
	Identity:    {"identity", func(x float64) float64 { return x }, func(float64) float64 { return 1 }},
	Sigmoid:     {"sigmoid", sigmoid, func(x float64) float64 { s := sigmoid(x); return s * (1 - s) }},
	Tanh:        {"tanh", math.Tanh, func(x float64) float64 { t := math.Tanh(x); return 1 - t*t }},
	ReLU:        {"relu", relu, func(x float64) float64 { return stepOf(x) }},
	LeakyReLU:   {"leaky_relu", leakyReLU, leakyReLUDerivative},
	ELU:         {"elu", elu, eluDerivative},
	SELU:        {"selu", func(x float64) float64 { return seluScale * seluInner(x) }, seluDerivative},
	Softplus:    {"softplus", softplus, sigmoid},
	Softsign:    {"softsign", softsign, softsignDerivative},
	Swish:       {"swish", func(x float64) float64 { return x * sigmoid(x) }, swishDerivative},
	Gaussian:    {"gaussian", func(x float64) float64 { return math.Exp(-x * x) }, func(x float64) float64 { return -2 * x * math.Exp(-x*x) }},
	Sine:        {"sine", math.Sin, math.Cos},
	Cosine:      {"cosine", math.Cos, func(x float64) float64 { return -math.Sin(x) }},
	Absolute:    {"absolute", math.Abs, sign},
	Square:      {"square", func(x float64) float64 { return x * x }, func(x float64) float64 { return 2 * x }},
	Cube:        {"cube", func(x float64) float64 { return x * x * x }, func(x float64) float64 { return 3 * x * x }},
	Step:        {"step", stepOf, func(float64) float64 { return 0 }},
	HardSigmoid: {"hard_sigmoid", hardSigmoid, hardSigmoidDerivative},
	HardTanh:    {"hard_tanh", hardTanh, hardTanhDerivative},
	Inverse:     {"inverse", inverse, inverseDerivative},
	Softmax:     {"softmax", func(x float64) float64 { return x }, func(float64) float64 { return 1 }},
}

// Activations lists every supported activation type in declaration order.
func Activations() []ActivationType {
	out := make([]ActivationType, 0, len(activationFunctions))
	for a := Identity; a <= Softmax; a++ {
		out = append(out, a)
	}
	return out
}

// Apply evaluates the activation at x.
func (a ActivationType) Apply(x float64) float64 {
	f, ok := activationFunctions[a]
	if !ok {
		return x
	}
	return f.fn(x)
}

// Derivative evaluates the derivative of the activation at x, where x is the
// pre-activation input (sum plus bias).
func (a ActivationType) Derivative(x float64) float64 {
	f, ok := activationFunctions[a]
	if !ok {
		return 1
	}
	return f.derivative(x)
}

// String returns the lowercase tag used in serialized networks and configs.
func (a ActivationType) String() string {
	if f, ok := activationFunctions[a]; ok {
		return f.name
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// ParseActivation maps a tag written by String back to its ActivationType.
func ParseActivation(name string) (ActivationType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, f := range activationFunctions {
		if f.name == name {
			return a, nil
		}
	}
	return Identity, fmt.Errorf("unknown activation function: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a ActivationType) MarshalText() ([]byte, error) {
	if _, ok := activationFunctions[a]; !ok {
		return nil, fmt.Errorf("unknown activation function: %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ActivationType) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SoftmaxValues returns the normalized exponentials of xs.
func SoftmaxValues(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	maxX := xs[0]
	for _, x := range xs[1:] {
		maxX = math.Max(maxX, x)
	}
	total := 0.0
	for i, x := range xs {
		out[i] = math.Exp(x - maxX)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// SoftmaxBackward maps the gradient with respect to softmax outputs onto the
// gradient with respect to its inputs.
func SoftmaxBackward(outputs, grad []float64) []float64 {
	dot := 0.0
	for i := range outputs {
		dot += outputs[i] * grad[i]
	}
	out := make([]float64, len(outputs))
	for i := range outputs {
		out[i] = outputs[i] * (grad[i] - dot)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func relu(x float64) float64 {
	return math.Max(0, x)
}

func stepOf(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func leakyReLU(x float64) float64 {
	if x > 0 {
		return x
	}
	return leakySlope * x
}

func leakyReLUDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return leakySlope
}

func elu(x float64) float64 {
	if x > 0 {
		return x
	}
	return math.Exp(x) - 1
}

func eluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return math.Exp(x)
}

func seluInner(x float64) float64 {
	if x > 0 {
		return x
	}
	return seluAlpha * (math.Exp(x) - 1)
}

func seluDerivative(x float64) float64 {
	if x > 0 {
		return seluScale
	}
	return seluScale * seluAlpha * math.Exp(x)
}

func softplus(x float64) float64 {
	// log1p(exp(x)) overflows for large x
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func softsign(x float64) float64 {
	return x / (1 + math.Abs(x))
}

func softsignDerivative(x float64) float64 {
	d := 1 + math.Abs(x)
	return 1 / (d * d)
}

func swishDerivative(x float64) float64 {
	s := sigmoid(x)
	return s + x*s*(1-s)
}

func hardSigmoid(x float64) float64 {
	return math.Max(0, math.Min(1, 0.2*x+0.5))
}

func hardSigmoidDerivative(x float64) float64 {
	if x > -2.5 && x < 2.5 {
		return 0.2
	}
	return 0
}

func hardTanh(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func hardTanhDerivative(x float64) float64 {
	if x > -1 && x < 1 {
		return 1
	}
	return 0
}

func inverse(x float64) float64 {
	if x == 0 {
		return 0
	}
	return 1 / x
}

func inverseDerivative(x float64) float64 {
	if x == 0 {
		return 0
	}
	return -1 / (x * x)
}

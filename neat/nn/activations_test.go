package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestActivationDerivativesMatchCentralDifference(t *testing.T) {
	const x = 42.0
	for _, a := range Activations() {
		if a == Softmax {
			continue
		}
		t.Run(a.String(), func(t *testing.T) {
			numeric := fd.Derivative(a.Apply, x, &fd.Settings{Formula: fd.Central})
			assert.InDelta(t, numeric, a.Derivative(x), 1e-2)
		})
	}
}

func TestActivationDerivativesNearOrigin(t *testing.T) {
	// Kinks at 0 are avoided.
	for _, x := range []float64{-1.3, -0.4, 0.7, 1.9} {
		for _, a := range Activations() {
			if a == Softmax || a == Step {
				continue
			}
			numeric := fd.Derivative(a.Apply, x, &fd.Settings{Formula: fd.Central})
			assert.InDelta(t, numeric, a.Derivative(x), 1e-2, "%s at %v", a, x)
		}
	}
}

func TestSoftmaxBackwardMatchesCentralDifference(t *testing.T) {
	xs := []float64{0.3, -1.2, 2.0}
	upstream := []float64{0.5, -0.25, 1.0}

	f := func(in []float64) float64 {
		total := 0.0
		for i, v := range SoftmaxValues(in) {
			total += upstream[i] * v
		}
		return total
	}
	numeric := fd.Gradient(nil, f, xs, &fd.Settings{Formula: fd.Central})
	analytic := SoftmaxBackward(SoftmaxValues(xs), upstream)
	require.Len(t, analytic, 3)
	for i := range xs {
		assert.InDelta(t, numeric[i], analytic[i], 1e-2)
	}
}

func TestSoftmaxValuesSumToOne(t *testing.T) {
	values := SoftmaxValues([]float64{1000, 1001, 999})
	total := 0.0
	for _, v := range values {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-12)
	assert.Empty(t, SoftmaxValues(nil))
}

func TestActivationTags(t *testing.T) {
	for _, a := range Activations() {
		text, err := a.MarshalText()
		require.NoError(t, err)

		var parsed ActivationType
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, a, parsed)
	}
	assert.Equal(t, "leaky_relu", LeakyReLU.String())

	_, err := ParseActivation("nope")
	assert.Error(t, err)
}

func TestNeuronTypeTags(t *testing.T) {
	for _, typ := range []NeuronType{Input, Hidden, Output, Context} {
		text, err := typ.MarshalText()
		require.NoError(t, err)

		var parsed NeuronType
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseNeuronType("bogus")
	assert.Error(t, err)
}

package nn

import "fmt"

// Reset clears sums, outputs and gradients of every non-Context neuron.
// Context neurons keep the value copied on the previous run.
func (n *NeuralNetwork) Reset() {
	for _, ref := range n.neurons() {
		if ref.neuron.Type != Context {
			ref.neuron.reset()
		}
	}
}

// ResetContext clears Context neurons and the copy counters of the
// connections feeding them.
func (n *NeuralNetwork) ResetContext() {
	for _, ref := range n.neurons() {
		if ref.neuron.Type == Context {
			ref.neuron.reset()
		}
	}
	for _, c := range n.Connections() {
		c.Cycles = 0
	}
}

// Run evaluates the network on inputs and returns the output layer values.
// Neurons are visited in Link order, so a backward connection delivers its
// value on the next call.
func (n *NeuralNetwork) Run(inputs []float64) ([]float64, error) {
	if len(inputs) != n.InputLayer().Size() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputSize, len(inputs), n.InputLayer().Size())
	}
	n.Reset()
	for i, v := range inputs {
		n.Layers[0].Neurons[i].Sum = v
	}
	for _, ref := range n.neurons() {
		src := ref.neuron
		src.activate()
		for i := range src.Connections {
			c := &src.Connections[i]
			dest := n.at(c.Dest)
			if c.Recurrent && dest.Type == Context {
				c.Cycles++
				if limit := n.Layers[c.Dest.Layer].CyclesLimit; limit > 0 && c.Cycles > limit {
					dest.Sum = 0
					c.Cycles = 0
					continue
				}
				dest.Sum = src.Sum
				continue
			}
			dest.Sum += src.Output * c.Weight
		}
	}
	if n.softmaxOutput() {
		n.applySoftmax()
	}
	return n.Outputs(), nil
}

// Outputs returns a copy of the output layer values from the last run.
func (n *NeuralNetwork) Outputs() []float64 {
	out := n.OutputLayer().Neurons
	values := make([]float64, len(out))
	for i := range out {
		values[i] = out[i].Output
	}
	return values
}

func (n *NeuralNetwork) applySoftmax() {
	out := n.OutputLayer().Neurons
	xs := make([]float64, len(out))
	for i := range out {
		xs[i] = out[i].Sum + out[i].Bias
	}
	for i, v := range SoftmaxValues(xs) {
		out[i].Output = v
	}
}

// ZeroGradients clears every neuron, bias and weight gradient.
func (n *NeuralNetwork) ZeroGradients() {
	for _, ref := range n.neurons() {
		ref.neuron.Gradient = 0
		ref.neuron.BiasGradient = 0
	}
	for _, c := range n.Connections() {
		c.Gradient = 0
	}
}

// Backward propagates grad, the derivative of the loss with respect to each
// output value of the last run, back through the network. Weight and bias
// gradients accumulate until ZeroGradients. It returns the derivative of the
// loss with respect to each input.
func (n *NeuralNetwork) Backward(grad []float64) ([]float64, error) {
	out := n.OutputLayer().Neurons
	if len(grad) != len(out) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrOutputSize, len(grad), len(out))
	}
	if n.softmaxOutput() {
		outputs := make([]float64, len(out))
		for i := range out {
			outputs[i] = out[i].Output
		}
		grad = SoftmaxBackward(outputs, grad)
	} else {
		local := make([]float64, len(grad))
		for i := range out {
			local[i] = grad[i] * out[i].Activation.Derivative(out[i].Sum+out[i].Bias)
		}
		grad = local
	}
	for i := range out {
		out[i].Gradient = grad[i]
		out[i].BiasGradient += grad[i]
	}

	refs := n.neurons()
	for k := len(refs) - 1; k >= 0; k-- {
		ref := refs[k]
		if n.isOutput(ref.link) {
			continue
		}
		src := ref.neuron
		src.Gradient = 0
		for i := len(src.Connections) - 1; i >= 0; i-- {
			c := &src.Connections[i]
			if c.Recurrent {
				continue
			}
			dest := n.at(c.Dest)
			if !c.Frozen {
				c.Gradient += src.Output * dest.Gradient
			}
			src.Gradient += c.Weight * dest.Gradient
		}
		if src.Type != Input {
			src.Gradient *= src.Activation.Derivative(src.Sum + src.Bias)
			src.BiasGradient += src.Gradient
		}
	}

	in := n.InputLayer().Neurons
	inputGrad := make([]float64, len(in))
	for i := range in {
		inputGrad[i] = in[i].Gradient
	}
	return inputGrad, nil
}

// Parameter exposes one trainable value and its accumulated gradient.
type Parameter struct {
	Value    *float64
	Gradient *float64
}

// Parameters returns the biases of every non-input neuron and the weights of
// every connection that is neither frozen nor recurrent. The pointers stay
// valid until the next structural edit.
func (n *NeuralNetwork) Parameters() []Parameter {
	var params []Parameter
	for _, ref := range n.neurons() {
		nr := ref.neuron
		if nr.Type != Input && nr.Type != Context {
			params = append(params, Parameter{Value: &nr.Bias, Gradient: &nr.BiasGradient})
		}
		for i := range nr.Connections {
			c := &nr.Connections[i]
			if c.Frozen || c.Recurrent {
				continue
			}
			params = append(params, Parameter{Value: &c.Weight, Gradient: &c.Gradient})
		}
	}
	return params
}

// Loss measures how far actual is from expected.
type Loss interface {
	Loss(expected, actual []float64) float64
	// Backward returns dLoss/dActual.
	Backward(expected, actual []float64) []float64
}

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step(params []Parameter)
}

// Train runs one supervised step: forward pass, gradient computation and an
// optimizer update. It returns the loss before the update.
func (n *NeuralNetwork) Train(inputs, expected []float64, loss Loss, opt Optimizer) (float64, error) {
	actual, err := n.Run(inputs)
	if err != nil {
		return 0, err
	}
	if len(expected) != len(actual) {
		return 0, fmt.Errorf("%w: got %d expected values, want %d", ErrOutputSize, len(expected), len(actual))
	}
	n.ZeroGradients()
	if _, err := n.Backward(loss.Backward(expected, actual)); err != nil {
		return 0, err
	}
	opt.Step(n.Parameters())
	return loss.Loss(expected, actual), nil
}

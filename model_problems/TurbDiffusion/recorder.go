package TurbDiffusion

// Recorder receives the values a flux evaluation depends on and produces, in a fixed order,
// so that an automatic differentiation tape can bracket the kernel as one elementary operation.
type Recorder interface {
	DeclareInput(values ...float64)
	DeclareOutput(values ...float64)
}

// NoTape discards every declaration.
type NoTape struct{}

func (NoTape) DeclareInput(values ...float64)  {}
func (NoTape) DeclareOutput(values ...float64) {}

// Tape keeps a copy of every declared value. Each call is recorded as one block.
type Tape struct {
	inputs, outputs           []float64
	inputBlocks, outputBlocks []int // Length of every declared block, in order
}

func NewTape() *Tape {
	return &Tape{}
}

func (tp *Tape) DeclareInput(values ...float64) {
	tp.inputs = append(tp.inputs, values...)
	tp.inputBlocks = append(tp.inputBlocks, len(values))
}

func (tp *Tape) DeclareOutput(values ...float64) {
	tp.outputs = append(tp.outputs, values...)
	tp.outputBlocks = append(tp.outputBlocks, len(values))
}

// Reset empties the tape but keeps its storage.
func (tp *Tape) Reset() {
	tp.inputs = tp.inputs[:0]
	tp.outputs = tp.outputs[:0]
	tp.inputBlocks = tp.inputBlocks[:0]
	tp.outputBlocks = tp.outputBlocks[:0]
}

func (tp *Tape) Inputs() []float64 { return tp.inputs }

func (tp *Tape) Outputs() []float64 { return tp.outputs }

func (tp *Tape) NumInputs() int { return len(tp.inputs) }

func (tp *Tape) NumOutputs() int { return len(tp.outputs) }

func (tp *Tape) InputBlocks() []int { return tp.inputBlocks }

func (tp *Tape) OutputBlocks() []int { return tp.outputBlocks }

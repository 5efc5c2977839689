package ir

// Optimize runs the standard pass pipeline: constant folding, then dead
// code elimination to collect the instructions folding orphaned.
func Optimize(p *Program) {
	ConstantFold(p)
	Eliminate(p)
}

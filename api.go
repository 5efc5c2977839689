// Package zkc compiles a small imperative language into zero-knowledge
// arithmetic circuits: source text is lowered to an SSA IR, optimized, and
// encoded as a rank-1 constraint system over the BN254 scalar field.
package zkc

import (
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/ir"
	"github.com/achronyme/zkc/logger"
	"github.com/achronyme/zkc/r1cs"
)

// CompileResult bundles the optimized program, the constraint system and
// the advisory taint warnings.
type CompileResult struct {
	Program  *ir.Program
	CS       *r1cs.System
	Compiler *r1cs.Compiler

	// PublicInputs and Witnesses list input names in wire order.
	PublicInputs []string
	Witnesses    []string

	Warnings []ir.Warning

	// Taints holds the per-variable provenance of the unoptimized program,
	// indexed by ir.Var.
	Taints []ir.Taint
}

func compileProgram(prog *ir.Program) (*CompileResult, error) {
	log := logger.Logger()
	start := time.Now()

	// Analyze before optimizing: DCE would otherwise turn every
	// under-constrained input into a merely unused one.
	warnings := ir.Analyze(prog)
	taints := ir.Taints(prog)
	ir.Optimize(prog)
	for _, w := range warnings {
		log.Warn().Str("input", w.Name).Stringer("kind", w.Kind).Msg("taint analysis")
	}

	c := r1cs.NewCompiler()
	if err := c.Compile(prog); err != nil {
		return nil, err
	}

	log.Debug().
		Int("constraints", c.CS.NbConstraints()).
		Int("wires", c.CS.NbVariables()).
		Int("public", c.CS.NbPublicInputs()).
		Dur("took", time.Since(start)).
		Msg("compiled circuit")

	return &CompileResult{
		Program:      prog,
		CS:           c.CS,
		Compiler:     c,
		PublicInputs: c.PublicInputs,
		Witnesses:    c.Witnesses,
		Warnings:     warnings,
		Taints:       taints,
	}, nil
}

// Compile lowers source text with the given input declarations, runs the
// optimization passes and encodes the result as an R1CS.
func Compile(source string, public, witness []string) (*CompileResult, error) {
	prog, err := ir.LowerCircuit(source, public, witness)
	if err != nil {
		return nil, err
	}
	return compileProgram(prog)
}

// CompileSelfContained compiles source that declares its own inputs with
// `public` and `witness` statements.
func CompileSelfContained(source string) (*CompileResult, error) {
	prog, _, _, err := ir.LowerSelfContained(source)
	if err != nil {
		return nil, err
	}
	return compileProgram(prog)
}

// CompileWithWitness compiles the source and generates the full witness
// vector for the given inputs. The inputs are checked against the program
// semantics before any constraint is emitted, so assertion failures
// surface as ir.EvalError rather than an unsatisfied constraint.
func CompileWithWitness(source string, public, witness []string, inputs map[string]fr.Element) (*CompileResult, []fr.Element, error) {
	prog, err := ir.LowerCircuit(source, public, witness)
	if err != nil {
		return nil, nil, err
	}
	warnings := ir.Analyze(prog)
	taints := ir.Taints(prog)
	ir.Optimize(prog)

	c := r1cs.NewCompiler()
	w, err := c.CompileWithWitness(prog, inputs)
	if err != nil {
		return nil, nil, err
	}

	return &CompileResult{
		Program:      prog,
		CS:           c.CS,
		Compiler:     c,
		PublicInputs: c.PublicInputs,
		Witnesses:    c.Witnesses,
		Warnings:     warnings,
		Taints:       taints,
	}, w, nil
}

// Command zkc compiles circuit source files to snarkjs-compatible
// artifacts. Sources declare their own inputs with `public` and
// `witness` statements.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/spf13/cobra"

	"github.com/achronyme/zkc"
	"github.com/achronyme/zkc/export"
	"github.com/achronyme/zkc/field"
	"github.com/achronyme/zkc/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zkc",
		Short:         "compile circuits to zero-knowledge constraint systems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd(), newWitnessCmd(), newCheckCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	var out, irOut string

	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "compile a circuit to a .r1cs file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := zkc.CompileSelfContained(string(src))
			if err != nil {
				return err
			}
			reportWarnings(res)

			if irOut != "" {
				data, err := res.Program.MarshalBinary()
				if err != nil {
					return err
				}
				if err := os.WriteFile(irOut, data, 0o644); err != nil {
					return err
				}
			}
			if err := os.WriteFile(out, export.WriteR1CS(res.CS), 0o644); err != nil {
				return err
			}

			log := logger.Logger()
			log.Info().
				Int("constraints", res.CS.NbConstraints()).
				Int("wires", res.CS.NbVariables()).
				Str("out", out).
				Msg("wrote constraint system")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "circuit.r1cs", "output .r1cs path")
	cmd.Flags().StringVar(&irOut, "ir", "", "also dump the optimized IR to this path")
	return cmd
}

func newWitnessCmd() *cobra.Command {
	var out, inputsPath string

	cmd := &cobra.Command{
		Use:   "witness <source>",
		Short: "generate a .wtns file from a circuit and its inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			inputs, err := readInputs(inputsPath)
			if err != nil {
				return err
			}
			res, err := zkc.CompileSelfContained(string(src))
			if err != nil {
				return err
			}
			w, err := res.Compiler.GenerateWitness(inputs)
			if err != nil {
				return err
			}
			if err := res.CS.Verify(w); err != nil {
				return err
			}
			return os.WriteFile(out, export.WriteWitness(w), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "circuit.wtns", "output .wtns path")
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "inputs.json", "JSON file of input values")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var inputsPath string

	cmd := &cobra.Command{
		Use:   "check <source>",
		Short: "compile, generate a witness and verify every constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := zkc.CompileSelfContained(string(src))
			if err != nil {
				return err
			}
			reportWarnings(res)

			if inputsPath != "" {
				inputs, err := readInputs(inputsPath)
				if err != nil {
					return err
				}
				w, err := res.Compiler.GenerateWitness(inputs)
				if err != nil {
					return err
				}
				if err := res.CS.Verify(w); err != nil {
					return err
				}
			}

			fmt.Printf("ok: %d constraints, %d wires, %d public inputs\n",
				res.CS.NbConstraints(), res.CS.NbVariables(), res.CS.NbPublicInputs())
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "JSON file of input values (optional)")
	return cmd
}

// readInputs parses a JSON object of input name to decimal value string.
func readInputs(path string) (map[string]fr.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	inputs := make(map[string]fr.Element, len(raw))
	for name, s := range raw {
		v, ok := field.FromDecimal(s)
		if !ok {
			return nil, fmt.Errorf("input %q: invalid decimal value %q", name, s)
		}
		inputs[name] = v
	}
	return inputs, nil
}

func reportWarnings(res *zkc.CompileResult) {
	log := logger.Logger()
	for _, w := range res.Warnings {
		log.Warn().Str("input", w.Name).Stringer("kind", w.Kind).Msg("taint analysis")
	}
}

/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gobem/utils"
)

// AssembleCmd represents the assemble command
var AssembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the BEM matrix at each frequency and Bloch vector of a run",
	Long: `
Assembles the system matrix of the geometry named in the run file at every
listed frequency (and Bloch vector, for periodic geometries) and reports its
size, largest entry and timing.

gobem assemble -I run.yaml [--output M.txt]`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ipFile, output string
			r              *Run
		)
		ipFile, _ = cmd.Flags().GetString("inputParametersFile")
		output, _ = cmd.Flags().GetString("output")
		if r, err = loadRun(ipFile, viper.GetInt("workers")); err != nil {
			return
		}
		r.IP.Print()
		defer startProfile()()
		var w io.Writer
		if output != "" {
			var file *os.File
			if file, err = os.Create(output); err != nil {
				return
			}
			defer file.Close()
			w = file
		}
		return RunAssemble(r, viper.GetBool("perf"), os.Stdout, w)
	},
}

func init() {
	rootCmd.AddCommand(AssembleCmd)
	AssembleCmd.Flags().StringP("inputParametersFile", "I", "", "YAML run description")
	AssembleCmd.Flags().StringP("output", "o", "", "write every assembled matrix to this file")
}

// RunAssemble assembles the matrix of every frequency and Bloch vector of
// the run, reusing one matrix across the sweep. Summaries go to out, the
// matrices to matrices when it is non-nil.
func RunAssemble(r *Run, countPerf bool, out, matrices io.Writer) (err error) {
	var (
		M *utils.HMatrix
	)
	fmt.Fprintf(out, "%d basis functions, %d workers\n", r.G.TotalBFs, r.A.Workers())
	for _, omega := range r.IP.Frequencies() {
		for _, kB := range r.IP.BlochVectors() {
			var (
				start  = time.Now()
				ninstr uint64
			)
			assemble := func() (err error) {
				M, err = r.A.AssembleBEMMatrix(omega, kB, M)
				return
			}
			if countPerf {
				ninstr, err = countInstructions(assemble)
			} else {
				err = assemble()
			}
			if err != nil {
				return fmt.Errorf("omega=%v kBloch=%v: %w", omega, kB, err)
			}
			fmt.Fprintf(out, "omega=%-12v kBloch=%-12v max|M|=%.6e  %v", omega, kB, M.MaxAbs(), time.Since(start))
			if countPerf {
				fmt.Fprintf(out, "  %d instructions", ninstr)
			}
			fmt.Fprintln(out)
			if matrices != nil {
				name := fmt.Sprintf("M(omega=%v,kBloch=%v)", omega, kB)
				if _, err = io.WriteString(matrices, M.SetName(name).Print("%12.5e ")); err != nil {
					return
				}
			}
		}
	}
	fmt.Fprintf(out, "%s; %s\n", r.Ctx.Stats(), utils.GetMemUsage())
	return
}

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
	"image/color"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/notargets/gobem/incident"
	"github.com/notargets/gobem/utils"
)

// ScatterCmd represents the scatter command
var ScatterCmd = &cobra.Command{
	Use:   "scatter",
	Short: "Solve plane wave scattering and report scattered power and cross section",
	Long: `
Solves M K = B at each real frequency of the run for the plane wave given by
Polarization and Direction, with B = -<f, E_inc>/Z0 on electric and
<f, H_inc> on magnetic rows, and prints the scattered power and cross
section. With --mieRadius the analytic PEC sphere result is printed
alongside; with --plot the cross section is charted against omega.

gobem scatter -I sphere.yaml --mieRadius 1 --plot sigma.png`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ipFile, plotFile string
			radius           float64
			r                *Run
			rows             []ScatterRow
		)
		ipFile, _ = cmd.Flags().GetString("inputParametersFile")
		plotFile, _ = cmd.Flags().GetString("plot")
		radius, _ = cmd.Flags().GetFloat64("mieRadius")
		if r, err = loadRun(ipFile, viper.GetInt("workers")); err != nil {
			return
		}
		r.IP.Print()
		defer startProfile()()
		if rows, err = RunScatter(r, radius, os.Stdout); err != nil {
			return
		}
		if plotFile != "" {
			return PlotCrossSection(rows, radius, r.IP.Title, plotFile)
		}
		return
	},
}

func init() {
	rootCmd.AddCommand(ScatterCmd)
	ScatterCmd.Flags().StringP("inputParametersFile", "I", "", "YAML run description with Polarization and Direction")
	ScatterCmd.Flags().StringP("plot", "p", "", "write a cross section chart (.png, .svg, .pdf)")
	ScatterCmd.Flags().Float64P("mieRadius", "R", 0, "radius of a PEC sphere for the analytic comparison")
}

type ScatterRow struct {
	Omega, Power, Sigma, Mie float64
}

// RunScatter solves the scattering problem at every real frequency of the
// run. Imaginary frequencies are skipped.
func RunScatter(r *Run, radius float64, out io.Writer) (rows []ScatterRow, err error) {
	var (
		ip = r.IP
		pw *incident.PlaneWave
	)
	if ip.Polarization == nil {
		return nil, fmt.Errorf("scatter needs Polarization and Direction in the run file")
	}
	E0 := utils.CVec{complex(ip.Polarization[0], 0), complex(ip.Polarization[1], 0), complex(ip.Polarization[2], 0)}
	if pw, err = incident.NewPlaneWave(E0, utils.VecFromSlice(ip.Direction)); err != nil {
		return
	}
	if len(ip.ImagOmega) != 0 {
		utils.Warnf("scatter ignores %d imaginary frequencies\n", len(ip.ImagOmega))
	}
	fmt.Fprintf(out, "%12s %14s %14s", "omega", "power (W)", "sigma")
	if radius > 0 {
		fmt.Fprintf(out, " %14s %8s", "sigma (Mie)", "error")
	}
	fmt.Fprintln(out)
	for _, w := range ip.Omega {
		var sol *incident.Solution
		if sol, err = incident.Solve(r.A, complex(w, 0), pw); err != nil {
			return nil, fmt.Errorf("omega=%g: %w", w, err)
		}
		row := ScatterRow{Omega: w, Power: sol.ScatteredPower(), Sigma: sol.CrossSection(pw)}
		fmt.Fprintf(out, "%12.5g %14.6e %14.6e", row.Omega, row.Power, row.Sigma)
		if radius > 0 {
			row.Mie = incident.MiePECCrossSection(w, radius)
			fmt.Fprintf(out, " %14.6e %7.2f%%", row.Mie, 100*(row.Sigma-row.Mie)/row.Mie)
		}
		fmt.Fprintln(out)
		rows = append(rows, row)
	}
	return
}

// PlotCrossSection charts sigma against omega, with the Mie curve when a
// sphere radius is given.
func PlotCrossSection(rows []ScatterRow, radius float64, title, file string) (err error) {
	if len(rows) == 0 {
		return fmt.Errorf("no frequencies to plot")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Omega < rows[j].Omega })
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "omega (c / micron)"
	p.Y.Label.Text = "scattering cross section (micron^2)"

	pts := make(plotter.XYs, len(rows))
	for i, row := range rows {
		pts[i] = plotter.XY{X: row.Omega, Y: row.Sigma}
	}
	var sc *plotter.Scatter
	if sc, err = plotter.NewScatter(pts); err != nil {
		return
	}
	sc.Color = color.RGBA{R: 200, A: 255}
	p.Add(sc)
	p.Legend.Add("BEM", sc)

	if radius > 0 {
		var (
			n     = 200
			lo    = rows[0].Omega
			hi    = rows[len(rows)-1].Omega
			curve = make(plotter.XYs, 0, n)
		)
		for i := 0; i < n && hi > lo; i++ {
			w := lo + (hi-lo)*float64(i)/float64(n-1)
			curve = append(curve, plotter.XY{X: w, Y: incident.MiePECCrossSection(w, radius)})
		}
		if len(curve) > 1 {
			var line *plotter.Line
			if line, err = plotter.NewLine(curve); err != nil {
				return
			}
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add("Mie", line)
		}
	}
	p.Legend.Top = true
	if err = p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save cross section plot: %w", err)
	}
	return
}

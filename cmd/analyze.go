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

	"github.com/spf13/cobra"

	"github.com/notargets/gobem/geometry"
)

// AnalyzeCmd represents the analyze command
var AnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print mesh and region statistics of a geometry file",
	Long: `
Reads a geometry file, resolves containment and prints per-surface topology,
region assignment, mate detection and the memory needed by the system matrix.

gobem analyze -G dimer.scuffgeo`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			geoFile string
			G       *geometry.Geometry
		)
		if geoFile, err = cmd.Flags().GetString("geometryFile"); err != nil {
			return
		}
		if len(geoFile) == 0 {
			return fmt.Errorf("must supply a geometry file (-G, --geometryFile)")
		}
		if G, err = geometry.ReadGeometryFile(geoFile); err != nil {
			return
		}
		G.Statistics().Print()
		return
	},
}

func init() {
	rootCmd.AddCommand(AnalyzeCmd)
	AnalyzeCmd.Flags().StringP("geometryFile", "G", "", "geometry file (.scuffgeo)")
}

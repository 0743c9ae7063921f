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
	"os"
	"path/filepath"

	"github.com/notargets/gobem/InputParameters"
	"github.com/notargets/gobem/assembly"
	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/interaction"
)

const exampleRunFile = `
########################################
Title: "PEC sphere"
GeometryFile: sphere.scuffgeo # relative to this file
Omega: [0.5, 1.0, 1.5]
ImagOmega: []
Workers: 0 # one per CPU
Polarization: [1, 0, 0]
Direction: [0, 0, 1]
########################################
`

// Run is one loaded run description with its geometry and assembler.
type Run struct {
	IP  *InputParameters.RunParameters
	G   *geometry.Geometry
	Ctx *interaction.Context
	A   *assembly.Assembler
}

// loadRun reads the run description, loads the geometry it names and
// applies its motions. A non-zero workers overrides the file.
func loadRun(ipFile string, workers int) (r *Run, err error) {
	if len(ipFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleRunFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputParametersFile)")
	}
	var data []byte
	if data, err = os.ReadFile(ipFile); err != nil {
		return
	}
	r = &Run{IP: &InputParameters.RunParameters{}}
	if err = r.IP.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", ipFile, err)
	}
	if workers > 0 {
		r.IP.Workers = workers
	}
	var (
		geoFile = r.IP.GeometryFile
		meshDir = r.IP.MeshDirectory
		base    = filepath.Dir(ipFile)
	)
	if !filepath.IsAbs(geoFile) {
		geoFile = filepath.Join(base, geoFile)
	}
	if meshDir != "" && !filepath.IsAbs(meshDir) {
		meshDir = filepath.Join(base, meshDir)
	}
	opts := []geometry.Option{geometry.WithLogLevel(r.IP.LogLevel)}
	if meshDir != "" {
		opts = append(opts, geometry.WithMeshDirectory(meshDir))
	}
	if r.G, err = geometry.ReadGeometryFile(geoFile, opts...); err != nil {
		return nil, err
	}
	if motions := r.IP.Transformations(); len(motions) > 0 {
		if err = r.G.ApplyTransformations(motions); err != nil {
			return nil, err
		}
	}
	if r.Ctx, err = interaction.NewContext(interaction.DefaultConfig()); err != nil {
		return nil, err
	}
	r.A = assembly.NewAssembler(r.G, r.Ctx, r.IP.AssemblerOptions())
	return
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGeometry = `
OBJECT Ball
  MESHFILE builtin:icosphere:1:0
ENDOBJECT
`

const testRun = `
Title: Coarse sphere
GeometryFile: ball.scuffgeo
Omega: [0.5, 1.0]
ImagOmega: [0.7]
Workers: 2
Polarization: [1, 0, 0]
Direction: [0, 0, 1]
Motions:
  - Label: Ball
    Displaced: [0, 0, 0.5]
`

func writeRun(t *testing.T) (ipFile string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ball.scuffgeo"), []byte(testGeometry), 0644))
	ipFile = filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(ipFile, []byte(testRun), 0644))
	return
}

func TestCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, name := range []string{"analyze", "assemble", "scatter"} {
		assert.Contains(t, names, name)
	}
	for _, name := range []string{"workers", "quiet", "profile", "perf"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRunAssemble(t *testing.T) {
	_, err := loadRun("", 0)
	assert.Error(t, err)

	r, err := loadRun(writeRun(t), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, r.A.Workers())
	assert.True(t, r.G.SurfaceMoved[0])
	assert.InDelta(t, 0.5, r.G.Surfaces[0].Current.Displacement.Z, 1.e-15)

	var out, matrices bytes.Buffer
	require.NoError(t, RunAssemble(r, false, &out, &matrices))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// header, three frequencies, cache statistics
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "30 basis functions")
	assert.Contains(t, lines[3], "omega=(0+0.7i)")
	assert.Contains(t, lines[4], "context")
	assert.Equal(t, 3, strings.Count(matrices.String(), "[30x30]"))
}

func TestRunScatter(t *testing.T) {
	r, err := loadRun(writeRun(t), 0)
	require.NoError(t, err)
	var out bytes.Buffer
	rows, err := RunScatter(r, 1, &out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Positive(t, row.Mie)
		assert.NotZero(t, row.Sigma)
	}
	assert.Contains(t, out.String(), "sigma (Mie)")

	plotFile := filepath.Join(t.TempDir(), "sigma.png")
	require.NoError(t, PlotCrossSection(rows, 1, r.IP.Title, plotFile))
	info, err := os.Stat(plotFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotCrossSection(nil, 0, "", plotFile))
}

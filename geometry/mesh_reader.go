package geometry

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// TriMesh is a raw triangle soup as read from a mesh source.
type TriMesh struct {
	Vertices []r3.Vec
	Panels   [][3]int
}

const gmshTriangle = 2

// ReadMesh resolves a MESHFILE reference. Names starting with "builtin:" are
// generated, others are read relative to dir. tag < 0 selects all triangles.
func ReadMesh(meshFile string, tag int, dir string) (m *TriMesh, err error) {
	if strings.HasPrefix(strings.ToLower(meshFile), builtinPrefix) {
		return BuiltinMesh(meshFile)
	}
	path := meshFile
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".msh":
		var file *os.File
		if file, err = os.Open(path); err != nil {
			return nil, err
		}
		defer file.Close()
		if m, err = ReadGmsh22(file, tag); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return
	default:
		return nil, fmt.Errorf("unsupported mesh format: %q", ext)
	}
}

// ReadGmsh22 reads the triangles of an ASCII Gmsh 2.2 file, optionally
// restricted to one physical tag.
func ReadGmsh22(r io.Reader, tag int) (m *TriMesh, err error) {
	var (
		scanner   = bufio.NewScanner(r)
		nodeIndex = make(map[int]int)
		nodes     []r3.Vec
		tris      [][3]int // gmsh node IDs
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "$MeshFormat":
			if err = readMeshFormat(scanner); err != nil {
				return nil, err
			}
		case "$Nodes":
			if nodes, err = readNodes(scanner, nodeIndex); err != nil {
				return nil, err
			}
		case "$Elements":
			if tris, err = readTriangles(scanner, tag); err != nil {
				return nil, err
			}
		case "$PhysicalNames", "$Periodic", "$NodeData", "$ElementData", "$ElementNodeData":
			endMarker := "$End" + line[1:]
			for scanner.Scan() {
				if strings.TrimSpace(scanner.Text()) == endMarker {
					break
				}
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %v", err)
	}
	if len(tris) == 0 {
		if tag >= 0 {
			return nil, fmt.Errorf("no triangles with physical tag %d", tag)
		}
		return nil, fmt.Errorf("no triangles found")
	}
	m = &TriMesh{Vertices: nodes, Panels: make([][3]int, len(tris))}
	for i, tri := range tris {
		for j, id := range tri {
			idx, ok := nodeIndex[id]
			if !ok {
				return nil, fmt.Errorf("element references unknown node %d", id)
			}
			m.Panels[i][j] = idx
		}
	}
	return
}

func readMeshFormat(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}
	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}
	if !strings.HasPrefix(parts[0], "2.") {
		return fmt.Errorf("unsupported Gmsh format version: %s", parts[0])
	}
	if parts[1] != "0" {
		return fmt.Errorf("binary Gmsh files are not supported")
	}
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndMeshFormat" {
			break
		}
	}
	return nil
}

func readNodes(scanner *bufio.Scanner, nodeIndex map[int]int) (nodes []r3.Vec, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Nodes")
	}
	numNodes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid node count: %v", err)
	}
	nodes = make([]r3.Vec, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading nodes")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 4 {
			return nil, fmt.Errorf("invalid node line: %s", scanner.Text())
		}
		var (
			id      int
			x, y, z float64
		)
		if id, err = strconv.Atoi(parts[0]); err == nil {
			if x, err = strconv.ParseFloat(parts[1], 64); err == nil {
				if y, err = strconv.ParseFloat(parts[2], 64); err == nil {
					z, err = strconv.ParseFloat(parts[3], 64)
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("invalid node line: %s", scanner.Text())
		}
		nodeIndex[id] = len(nodes)
		nodes = append(nodes, r3.Vec{X: x, Y: y, Z: z})
	}
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndNodes" {
			break
		}
	}
	return
}

func readTriangles(scanner *bufio.Scanner, tag int) (tris [][3]int, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Elements")
	}
	numElements, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid element count: %v", err)
	}
	for i := 0; i < numElements; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading elements")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid element line")
		}
		elemType, _ := strconv.Atoi(parts[1])
		numTags, _ := strconv.Atoi(parts[2])
		if elemType != gmshTriangle {
			continue
		}
		nodeStart := 3 + numTags
		if len(parts) < nodeStart+3 {
			return nil, fmt.Errorf("element %s: expected 3 nodes", parts[0])
		}
		if tag >= 0 {
			physical := -1
			if numTags > 0 {
				physical, _ = strconv.Atoi(parts[3])
			}
			if physical != tag {
				continue
			}
		}
		var tri [3]int
		for j := 0; j < 3; j++ {
			if tri[j], err = strconv.Atoi(parts[nodeStart+j]); err != nil {
				return nil, fmt.Errorf("element %s: bad node id %q", parts[0], parts[nodeStart+j])
			}
		}
		tris = append(tris, tri)
	}
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndElements" {
			break
		}
	}
	return
}

// weld merges vertices closer than tol and drops unreferenced ones.
func (m *TriMesh) weld(tol float64) (vertices []r3.Vec, panels [][3]int) {
	type key [3]int64
	var (
		seen  = make(map[key]int)
		remap = make(map[int]int)
	)
	quantize := func(p r3.Vec) key {
		return key{int64(math.Round(p.X / tol)), int64(math.Round(p.Y / tol)), int64(math.Round(p.Z / tol))}
	}
	panels = make([][3]int, len(m.Panels))
	for np, tri := range m.Panels {
		for j, iv := range tri {
			if nv, ok := remap[iv]; ok {
				panels[np][j] = nv
				continue
			}
			k := quantize(m.Vertices[iv])
			nv, ok := seen[k]
			if !ok {
				nv = len(vertices)
				seen[k] = nv
				vertices = append(vertices, m.Vertices[iv])
			}
			remap[iv] = nv
			panels[np][j] = nv
		}
	}
	return
}

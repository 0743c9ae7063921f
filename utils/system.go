package utils

import (
	"fmt"
	"math/cmplx"
	"runtime"
)

func GetMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return fmt.Sprintf("Alloc = %v MiB TotalAlloc = %v MiB Sys = %v MiB NumGC = %v",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC)
}

// IsNan reports whether any entry of A is NaN.
func IsNan(A any) bool {
	switch v := A.(type) {
	case complex128:
		return cmplx.IsNaN(v)
	case []complex128:
		for _, z := range v {
			if cmplx.IsNaN(z) {
				return true
			}
		}
	case *HMatrix:
		nr, nc := v.Dims()
		for i := 0; i < nr; i++ {
			for j := 0; j < nc; j++ {
				if cmplx.IsNaN(v.Get(i, j)) {
					return true
				}
			}
		}
	}
	return false
}

package utils

import "math"

const (
	ZVAC     = 376.73031346177 // impedance of free space, Ohms
	FreqUnit = 3.0e14          // radians/sec per unit of angular frequency (c / 1 micron)
)

var SQRTPI = math.Sqrt(math.Pi)

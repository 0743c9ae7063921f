//go:build !linux

package cmd

import "github.com/notargets/gobem/utils"

func countInstructions(f func() error) (uint64, error) {
	utils.Warnf("instruction counting requires linux\n")
	return 0, f()
}

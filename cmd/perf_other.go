//go:build !linux

package cmd

import "fmt"

func countInstructions(f func() error) (count uint64, err error) {
	return 0, fmt.Errorf("hardware counters are only available on linux")
}

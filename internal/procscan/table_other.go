//go:build !linux && !darwin

package procscan

import (
	"errors"
	"time"
)

// stubTable keeps the package compiling on unsupported platforms. Every query
// reports "no information", so discovery degrades to metadata-only sessions.
type stubTable struct{}

func newHostTable() procTable { return stubTable{} }

var errUnsupported = errors.New("process inspection is not supported on this platform")

func (stubTable) listPids() ([]int, error)                { return nil, errUnsupported }
func (stubTable) parentPid(int) (int, bool)               { return 0, false }
func (stubTable) name(int) (string, bool)                 { return "", false }
func (stubTable) executablePath(int) (string, bool)       { return "", false }
func (stubTable) cpuTime(int) (time.Duration, bool)       { return 0, false }

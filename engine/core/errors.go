package core

import (
	"errors"
)

var (
	// ErrNoGPU is returned when no hardware-accelerated surface can be created.
	// There is no software fallback for the interactive viewport.
	ErrNoGPU = errors.New("no hardware-accelerated GPU surface available")
	// ErrTornDown is returned by operations invoked after viewport teardown.
	ErrTornDown = errors.New("viewport already torn down")
)

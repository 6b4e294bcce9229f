package config

import (
	"errors"
)

// Sentinel kinds returned by Load and Validate; match with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

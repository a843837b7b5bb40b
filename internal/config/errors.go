package config

import "errors"

// ErrInvalidConfig wraps every validation failure; ErrLoadConfig wraps
// failures reading the YAML file or the MOODSCALE_* environment.
var (
	ErrInvalidConfig = errors.New("invalid moodscale config")
	ErrLoadConfig    = errors.New("load moodscale config")
)

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrLoadConfig wraps failures reading the YAML file or the environment.
	ErrLoadConfig = errors.New("load config failed")
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownKVBackend is an ErrInvalidConfig for kv_backend values other
	// than sqlite, redis or memory.
	ErrUnknownKVBackend = fmt.Errorf("%w: unknown kv_backend", ErrInvalidConfig)
)

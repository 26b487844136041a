package config

import "errors"

// ErrEmptyPath indicates that no configuration file was given.
var ErrEmptyPath = errors.New("config path is empty")

// ErrInvalidConfig wraps every schema violation found by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

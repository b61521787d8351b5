package compat

import "errors"

// ErrIncompatible marks a driver as not usable in the current environment
// (no systemd journal socket, no session bus, ...).
var ErrIncompatible = errors.New("driver is incompatible with this environment")

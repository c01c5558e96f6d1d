package client

import (
	"errors"
)

var ErrNoExecutions = errors.New("no executions available")
var ErrNotRegistered = errors.New("machine not registered")
var ErrUnauthorized = errors.New("worker token rejected")
var ErrBackendDown = errors.New("backend unavailable")

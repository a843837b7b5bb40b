package service

import "errors"

// Sentinel error kinds returned by the Service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrBackpressure      = errors.New("assessment queue full")
	ErrInvalidSubmission = errors.New("invalid submission")
)

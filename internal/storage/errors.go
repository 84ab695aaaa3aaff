package storage

import "errors"

var (
	// ErrNoRun is returned when rows are saved before BeginRun
	ErrNoRun = errors.New("no run started")
	// ErrRunNotFound is returned when a run id is unknown
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotFinished is returned when a run has no stored report yet
	ErrRunNotFinished = errors.New("run not finished")
	// ErrMissingHeader is returned when the inventory lacks a required column
	ErrMissingHeader = errors.New("inventory missing required column")
	// ErrEmptyInventory is returned when the inventory file has no header row
	ErrEmptyInventory = errors.New("inventory has no header row")
)

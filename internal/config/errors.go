package config

import "errors"

var (
	// ErrInvalidStrategy is returned when strategy is neither drop nor listings
	ErrInvalidStrategy = errors.New("strategy must be 'drop' or 'listings'")
	// ErrInvalidBatchSize is returned when batch size is not greater than 0
	ErrInvalidBatchSize = errors.New("batch_size must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrNegativeDelay is returned when a pacing or backoff delay is negative
	ErrNegativeDelay = errors.New("request_delay and server_busy_backoff cannot be negative")
	// ErrEmptyHost is returned when a host_delays entry has no host
	ErrEmptyHost = errors.New("host_delays entry needs a host")
	// ErrNoColumns is returned when no inventory columns are configured
	ErrNoColumns = errors.New("columns cannot be empty")
	// ErrEmptyColumn is returned when a column has no key or header
	ErrEmptyColumn = errors.New("column key and header cannot be empty")
	// ErrDuplicateColumn is returned when a column key or header appears twice
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrMissingColumn is returned when a required column is not configured
	ErrMissingColumn = errors.New("required column missing")
	// ErrUnknownField is returned when what_need_to_parse names an unknown field
	ErrUnknownField = errors.New("unknown field in what_need_to_parse")
)

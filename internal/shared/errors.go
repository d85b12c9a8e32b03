package shared

import "fmt"

var (
	// Input errors
	ErrPathNotFound    = fmt.Errorf("path not found")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Execution layer errors
	ErrSubmitAfterShutdown = fmt.Errorf("submit after shutdown")
	ErrPoolNotRunning      = fmt.Errorf("pool is not running")
	ErrRootLocked          = fmt.Errorf("root is locked by another run")

	// Ledger errors
	ErrRunNotFound = fmt.Errorf("run not found")
)

package main

// Exit codes shared by every pubs command.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure, cancellation)
	ExitConfigError = 2 // Configuration error (environment, taxonomy file, store URL)
	ExitDataError   = 3 // Data error (validation failure, malformed import payload)
	ExitNotFound    = 4 // No publication with the given id
	ExitUnavailable = 5 // Store unreachable; the command may be retried
)

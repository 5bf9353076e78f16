// Package domain provides core types for the task client.
package domain

// ExitCode represents the exit status of the CLI.
type ExitCode int

const (
	// ExitSuccess indicates the command completed. A task that is not done yet
	// still counts as success.
	ExitSuccess ExitCode = 0
	// ExitError indicates the command failed due to an error.
	ExitError ExitCode = 1
	// ExitInterrupted indicates the command was interrupted by a signal.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}

package cli

import "fmt"

// ConfigError reports an invalid or unloadable gateway configuration.
type ConfigError struct {
	// Field is the dotted config path ("transport.default"); empty when
	// the file as a whole failed to load or validate.
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

// CommandError wraps a subcommand failure so the root command reports
// which gateway operation failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for the given config field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError wraps err as a failure of the named subcommand.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

package dump

// ConfigurationError marks fatal setup problems: a missing or broken
// dump binary, malformed collaborator wiring. Nothing is retried and no
// job runs after one of these.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// OperationError marks a failed backup run: zero jobs scheduled, or one
// or more jobs exiting nonzero after every sibling was waited on.
type OperationError struct {
	Msg string
}

func (e *OperationError) Error() string { return e.Msg }

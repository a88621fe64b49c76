package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

// Request errors

// InvalidRequest marks a request that failed normalization or produced a
// degenerate configuration. No task is ever created for such a request.
func InvalidRequest(reason string) *BuildError {
	return New(CategoryValidation, SeverityWarning, "invalid request").
		WithContext("reason", reason)
}

// InvalidRequestWrap wraps a normalizer failure as an invalid request.
func InvalidRequestWrap(cause error) *BuildError {
	return Wrap(cause, CategoryValidation, SeverityWarning, "invalid request")
}

// Execution errors

// GeneratorFailed wraps a failed external generator invocation.
func GeneratorFailed(fingerprint string, cause error) *BuildError {
	return Wrap(cause, CategoryExecution, SeverityError, "generator invocation failed").
		WithContext("fingerprint", fingerprint)
}

// ScratchError wraps a scratch directory preparation failure.
func ScratchError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "scratch directory operation failed").
		WithContext("operation", operation)
}

// ProbeError wraps a failed cache existence check.
func ProbeError(path string, cause error) *BuildError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "artifact probe failed").
		WithContext("path", path)
}

// QueueSaturated marks a rejected enqueue when the intake queue is full.
func QueueSaturated() *BuildError {
	return New(CategoryExecution, SeverityError, "build queue is saturated")
}

// Internal errors

func InternalError(message string, cause error) *BuildError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

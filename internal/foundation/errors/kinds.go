package errors

// ErrorCategory groups errors by the subsystem that raised them.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryNetwork    ErrorCategory = "network"
	CategoryGit        ErrorCategory = "git"
	CategoryPublish    ErrorCategory = "publish"
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryEventStore ErrorCategory = "eventstore"
	CategoryServe      ErrorCategory = "serve"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how far an error propagates.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // stops the process
	SeverityError   ErrorSeverity = "error"   // fails the current operation
	SeverityWarning ErrorSeverity = "warning" // degraded, keeps going
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// kind is the presentation of a category on each outer surface.
type kind struct {
	exitCode   int
	httpStatus int
}

// kinds maps categories to CLI exit codes and dev server statuses. Categories missing
// here exit with 1 and answer 500.
var kinds = map[ErrorCategory]kind{
	CategoryValidation: {exitCode: 2, httpStatus: 400},
	CategoryConfig:     {exitCode: 7, httpStatus: 400},
	CategoryNotFound:   {exitCode: 1, httpStatus: 404},
	CategoryNetwork:    {exitCode: 8, httpStatus: 502},
	CategoryGit:        {exitCode: 8, httpStatus: 502},
	CategoryPublish:    {exitCode: 8, httpStatus: 502},
	CategoryInternal:   {exitCode: 10, httpStatus: 500},
	CategoryBuild:      {exitCode: 11, httpStatus: 422},
	CategoryFileSystem: {exitCode: 11, httpStatus: 500},
	CategoryServe:      {exitCode: 12, httpStatus: 503},
	CategoryEventStore: {exitCode: 12, httpStatus: 500},
}

func kindOf(err error) (kind, bool) {
	c, ok := AsClassified(err)
	if !ok {
		return kind{}, false
	}
	k, ok := kinds[c.category]
	return k, ok
}

// ConfigError creates a configuration error. Bad configuration is fatal and needs the
// user to fix it.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction()
}

// ValidationError creates an invalid input error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal().UserAction()
}

// BuildError creates a content pipeline error.
func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message).Fatal()
}

func GitError(message string) *ErrorBuilder {
	return NewError(CategoryGit, message).UserAction()
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

// NetworkError creates a retryable transport error.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

func ServeError(message string) *ErrorBuilder {
	return NewError(CategoryServe, message)
}

// EventStoreError creates a build history persistence error. History is optional, so
// these never escalate past SeverityError.
func EventStoreError(message string) *ErrorBuilder {
	return NewError(CategoryEventStore, message)
}

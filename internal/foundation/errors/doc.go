// Package errors provides classified error primitives used across gardener.
//
// A ClassifiedError carries a category (config, build, git, serve ...), a severity and
// structured context. The CLI adapter maps categories to exit codes; the HTTP adapter maps
// them to status codes for the dev server.
//
//	err := errors.WrapError(cause, errors.CategoryGit, "pull failed").
//		WithContext("remote", remote).
//		Build()
package errors

package eventstore

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

// Sentinels for errors.Is. Returned errors carry the underlying cause.
var (
	ErrDatabaseOpenFailed     = ferrors.EventStoreError("could not open build history database").Build()
	ErrInitializeSchemaFailed = ferrors.EventStoreError("failed to initialize build history schema").Build()
	ErrEventAppendFailed      = ferrors.EventStoreError("failed to append event to build history").Build()
	ErrEventQueryFailed       = ferrors.EventStoreError("failed to query build history").Build()
	ErrPayloadDecodeFailed    = ferrors.EventStoreError("failed to decode build record").Build()
)

func wrap(sentinel *ferrors.ClassifiedError, cause error) error {
	return ferrors.WrapError(cause, sentinel.Category(), sentinel.Message()).Build()
}

func errSchemaTooNew(version int) error {
	return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
}

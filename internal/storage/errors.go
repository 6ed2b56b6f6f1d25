package storage

import (
	"fmt"

	"glassbank/pkg/sentinel"
)

// notFound wraps the shared sentinel with the collection name so services can
// both errors.Is it and log something useful.
func notFound(collection, id string) error {
	return fmt.Errorf("%s %q: %w", collection, id, sentinel.ErrNotFound)
}

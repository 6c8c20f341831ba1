// Package memorystorage is the in-process storage used when neither a
// database nor a storage file is configured. Everything is lost on exit.
package memorystorage

import (
	"github.com/patric-chuzhbe/scratchpad/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() *MemoryStorage {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

//go:build !sqlite

package storage

import "fmt"

func DefaultStoreKind() string {
	return "badger"
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}

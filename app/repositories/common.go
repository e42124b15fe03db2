package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"postkeeper/app/models"
)

const (
	// Key prefixes for the document collections
	PostKeyPrefix    = "post:"
	CommentKeyPrefix = "comment:"

	// CommentPostIndexPrefix indexes comments by their postId field
	CommentPostIndexPrefix = "idx:comment:post:"

	// ImportKeyPrefix holds the import ledger
	ImportKeyPrefix = "import:"
)

func postKey(id string) []byte {
	return []byte(PostKeyPrefix + id)
}

func commentKey(id string) []byte {
	return []byte(CommentKeyPrefix + id)
}

func commentIndexPrefix(postID string) []byte {
	return []byte(CommentPostIndexPrefix + postID + ":")
}

func commentIndexKey(postID, commentID string) []byte {
	return []byte(CommentPostIndexPrefix + postID + ":" + commentID)
}

func importKey(source string, externalID int) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", ImportKeyPrefix, source, externalID))
}

// newID returns a fresh opaque document id
func newID() string {
	return uuid.NewString()
}

// marshalEntity marshals an entity to JSON
func marshalEntity(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}

// getEntity loads the document at key into v. found is false when the key is absent.
func getEntity(txn *badger.Txn, key []byte, v interface{}) (found bool, err error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return unmarshalEntity(val, v)
	})
}

// StoreError is a transport level failure of the document store. It matches
// models.ErrStoreUnavailable and unwraps to the badger error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == models.ErrStoreUnavailable
}

// translate leaves domain errors untouched and classifies everything else.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsNotFound(err) || models.IsConflict(err) {
		return err
	}
	if errors.Is(err, badger.ErrConflict) {
		return errors.Wrap(models.ErrConcurrentModification, op)
	}
	return errors.WithStack(&StoreError{Op: op, Err: err})
}

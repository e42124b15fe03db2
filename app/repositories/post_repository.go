package repositories

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"postkeeper/app/models"
)

// BadgerPostRepository implements PostRepository using BadgerDB. Each post,
// including its embedded comment projection, is one JSON document.
type BadgerPostRepository struct {
	db                *badger.DB
	optimisticLocking bool
	now               func() time.Time
}

// NewBadgerPostRepository creates a new BadgerPostRepository
func NewBadgerPostRepository(db *badger.DB, optimisticLocking bool) *BadgerPostRepository {
	return &BadgerPostRepository{
		db:                db,
		optimisticLocking: optimisticLocking,
		now:               time.Now,
	}
}

// Save inserts the post when it has no ID and overwrites it otherwise. With
// optimistic locking enabled an overwrite fails with
// models.ErrConcurrentModification unless the stored version equals post.Version.
// On success post carries the stored id, timestamps and version.
func (r *BadgerPostRepository) Save(ctx context.Context, post *models.Post) error {
	doc := post.Clone()
	insert := doc.ID == ""
	if insert {
		doc.ID = newID()
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		key := postKey(doc.ID)

		if !insert && r.optimisticLocking {
			var stored models.Post
			found, err := getEntity(txn, key, &stored)
			if err != nil {
				return err
			}
			if !found {
				return models.PostNotFound(doc.ID)
			}
			if stored.Version != doc.Version {
				return models.ErrConcurrentModification
			}
		}

		doc.BeforeSave(r.now())
		data, err := marshalEntity(doc)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return translate("save post", err)
	}

	*post = *doc
	return nil
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getEntity(txn, postKey(id), &post)
		if err != nil {
			return err
		}
		if !found {
			return models.PostNotFound(id)
		}
		return nil
	})
	if err != nil {
		return nil, translate("get post", err)
	}
	return &post, nil
}

// ExistsByID reports whether a post document exists
func (r *BadgerPostRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(postKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, translate("check post", err)
	}
	return exists, nil
}

// List retrieves a page of posts ordered by creation time
func (r *BadgerPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return err
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, translate("list posts", err)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})

	if offset >= len(posts) {
		return []*models.Post{}, nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end], nil
}

// Delete deletes a post by ID. Comments referencing it are left in place.
func (r *BadgerPostRepository) Delete(ctx context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := postKey(id)

		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return models.PostNotFound(id)
		}
		if err != nil {
			return err
		}

		return txn.Delete(key)
	})
	return translate("delete post", err)
}

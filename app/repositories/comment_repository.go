package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"postkeeper/app/models"
)

// BadgerCommentRepository implements CommentRepository using BadgerDB. The
// comment document and its postId index entry are written in one transaction.
type BadgerCommentRepository struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerCommentRepository creates a new BadgerCommentRepository
func NewBadgerCommentRepository(db *badger.DB) *BadgerCommentRepository {
	return &BadgerCommentRepository{db: db, now: time.Now}
}

// Save inserts the comment when it has no ID and overwrites it otherwise
func (r *BadgerCommentRepository) Save(ctx context.Context, comment *models.Comment) error {
	doc := *comment
	if doc.ID == "" {
		doc.ID = newID()
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		var stored models.Comment
		found, err := getEntity(txn, commentKey(doc.ID), &stored)
		if err != nil {
			return err
		}
		if found && stored.PostID != doc.PostID {
			if err := txn.Delete(commentIndexKey(stored.PostID, doc.ID)); err != nil {
				return err
			}
		}

		doc.BeforeSave(r.now())
		data, err := marshalEntity(doc)
		if err != nil {
			return err
		}
		if err := txn.Set(commentKey(doc.ID), data); err != nil {
			return err
		}
		return txn.Set(commentIndexKey(doc.PostID, doc.ID), []byte{})
	})
	if err != nil {
		return translate("save comment", err)
	}

	*comment = doc
	return nil
}

// GetByID retrieves a comment by ID
func (r *BadgerCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getEntity(txn, commentKey(id), &comment)
		if err != nil {
			return err
		}
		if !found {
			return models.CommentNotFound(id)
		}
		return nil
	})
	if err != nil {
		return nil, translate("get comment", err)
	}
	return &comment, nil
}

// Update overwrites an existing comment. It fails with a not-found error,
// and writes nothing, when the comment document is absent.
func (r *BadgerCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	doc := *comment
	err := r.db.Update(func(txn *badger.Txn) error {
		var stored models.Comment
		found, err := getEntity(txn, commentKey(doc.ID), &stored)
		if err != nil {
			return err
		}
		if !found || stored.PostID != doc.PostID {
			return models.CommentNotFound(doc.ID)
		}

		doc.CreatedAt = stored.CreatedAt
		doc.BeforeSave(r.now())
		data, err := marshalEntity(doc)
		if err != nil {
			return err
		}
		return txn.Set(commentKey(doc.ID), data)
	})
	if err != nil {
		return translate("update comment", err)
	}

	*comment = doc
	return nil
}

// ListByPost retrieves all comments whose postId equals postID, oldest first
func (r *BadgerCommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := commentIndexPrefix(postID)
		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}

		for _, id := range ids {
			var comment models.Comment
			found, err := getEntity(txn, commentKey(id), &comment)
			if err != nil {
				return err
			}
			if found {
				comments = append(comments, &comment)
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate("list comments", err)
	}

	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// Delete deletes a comment by ID along with its index entry
func (r *BadgerCommentRepository) Delete(ctx context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var stored models.Comment
		found, err := getEntity(txn, commentKey(id), &stored)
		if err != nil {
			return err
		}
		if !found {
			return models.CommentNotFound(id)
		}

		if err := txn.Delete(commentIndexKey(stored.PostID, id)); err != nil {
			return err
		}
		return txn.Delete(commentKey(id))
	})
	return translate("delete comment", err)
}

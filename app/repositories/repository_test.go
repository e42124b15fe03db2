package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postkeeper/app/models"
)

func setupTestRepository(t *testing.T, optimisticLocking bool) *Repository {
	repo, err := NewRepository(Options{OptimisticLocking: optimisticLocking})
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, false)

	t.Run("save assigns id and version", func(t *testing.T) {
		post := &models.Post{Title: "Test Post", Body: "This is a test post body"}
		require.NoError(t, repo.Posts.Save(ctx, post))
		assert.NotEmpty(t, post.ID)
		assert.Equal(t, int64(1), post.Version)
		assert.False(t, post.CreatedAt.IsZero())

		retrieved, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, post.Title, retrieved.Title)
		assert.Equal(t, post.Body, retrieved.Body)
		assert.Equal(t, int64(1), retrieved.Version)
	})

	t.Run("save keeps embedded comments", func(t *testing.T) {
		post := &models.Post{Title: "With comments", Body: "body"}
		require.NoError(t, repo.Posts.Save(ctx, post))
		require.NoError(t, post.AddComment(models.Comment{ID: "c1", Name: "Ann", Body: "hi"}))
		require.NoError(t, post.AddComment(models.Comment{ID: "c2", Name: "Bob", Body: "yo"}))
		require.NoError(t, repo.Posts.Save(ctx, post))

		retrieved, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, retrieved.CommentIDs())
		assert.Equal(t, int64(2), retrieved.Version)
	})

	t.Run("get missing post", func(t *testing.T) {
		_, err := repo.Posts.GetByID(ctx, "missing")
		assert.True(t, models.IsNotFound(err, models.KindPost))
	})

	t.Run("exists", func(t *testing.T) {
		post := &models.Post{Title: "Exists", Body: "body"}
		require.NoError(t, repo.Posts.Save(ctx, post))

		ok, err := repo.Posts.ExistsByID(ctx, post.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Posts.ExistsByID(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete post", func(t *testing.T) {
		post := &models.Post{Title: "Post to Delete", Body: "This post will be deleted"}
		require.NoError(t, repo.Posts.Save(ctx, post))
		require.NoError(t, repo.Posts.Delete(ctx, post.ID))

		_, err := repo.Posts.GetByID(ctx, post.ID)
		assert.True(t, models.IsNotFound(err))

		err = repo.Posts.Delete(ctx, post.ID)
		assert.True(t, models.IsNotFound(err, models.KindPost))
	})

	t.Run("list posts", func(t *testing.T) {
		require.NoError(t, repo.Clear())
		for i := 0; i < 5; i++ {
			post := &models.Post{Title: "List Test Post", Body: "Body for list test"}
			require.NoError(t, repo.Posts.Save(ctx, post))
		}

		posts, err := repo.Posts.List(ctx, 3, 0)
		require.NoError(t, err)
		assert.Len(t, posts, 3)

		posts, err = repo.Posts.List(ctx, 3, 3)
		require.NoError(t, err)
		assert.Len(t, posts, 2)

		posts, err = repo.Posts.List(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestPostRepositoryLostUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("last write wins without locking", func(t *testing.T) {
		repo := setupTestRepository(t, false)
		post := &models.Post{Title: "Race", Body: "body"}
		require.NoError(t, repo.Posts.Save(ctx, post))

		first, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		second, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)

		require.NoError(t, first.AddComment(models.Comment{ID: "c1"}))
		require.NoError(t, second.AddComment(models.Comment{ID: "c2"}))
		require.NoError(t, repo.Posts.Save(ctx, first))
		require.NoError(t, repo.Posts.Save(ctx, second))

		stored, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, stored.CommentIDs())
	})

	t.Run("version check rejects stale writer", func(t *testing.T) {
		repo := setupTestRepository(t, true)
		post := &models.Post{Title: "Race", Body: "body"}
		require.NoError(t, repo.Posts.Save(ctx, post))

		first, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		second, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)

		require.NoError(t, first.AddComment(models.Comment{ID: "c1"}))
		require.NoError(t, second.AddComment(models.Comment{ID: "c2"}))
		require.NoError(t, repo.Posts.Save(ctx, first))

		err = repo.Posts.Save(ctx, second)
		assert.True(t, models.IsConflict(err))
		assert.Equal(t, int64(1), second.Version, "failed save must not touch the caller's copy")

		stored, err := repo.Posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, stored.CommentIDs())
	})

	t.Run("version check on deleted post", func(t *testing.T) {
		repo := setupTestRepository(t, true)
		post := &models.Post{ID: "ghost", Title: "Ghost", Body: "body"}
		err := repo.Posts.Save(ctx, post)
		assert.True(t, models.IsNotFound(err, models.KindPost))
	})
}

func TestCommentRepository(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, false)

	newComment := func(postID, name string) *models.Comment {
		return &models.Comment{PostID: postID, Email: "a@b.com", Name: name, Body: "Test Comment"}
	}

	t.Run("create and get comment", func(t *testing.T) {
		comment := newComment("p1", "Test Author")
		require.NoError(t, repo.Comments.Save(ctx, comment))
		assert.NotEmpty(t, comment.ID)

		retrieved, err := repo.Comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, comment.Name, retrieved.Name)
		assert.Equal(t, comment.PostID, retrieved.PostID)
	})

	t.Run("update comment", func(t *testing.T) {
		comment := newComment("p1", "Original Author")
		require.NoError(t, repo.Comments.Save(ctx, comment))

		comment.Name = "Updated Author"
		require.NoError(t, repo.Comments.Save(ctx, comment))

		updated, err := repo.Comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated Author", updated.Name)

		updated.Body = "Edited"
		require.NoError(t, repo.Comments.Update(ctx, updated))
		got, err := repo.Comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, "Edited", got.Body)
		assert.Equal(t, updated.CreatedAt.Unix(), got.CreatedAt.Unix())
	})

	t.Run("update never recreates a deleted comment", func(t *testing.T) {
		comment := newComment("p1", "Gone")
		require.NoError(t, repo.Comments.Save(ctx, comment))
		require.NoError(t, repo.Comments.Delete(ctx, comment.ID))

		comment.Name = "Back"
		err := repo.Comments.Update(ctx, comment)
		assert.True(t, models.IsNotFound(err, models.KindComment))

		_, err = repo.Comments.GetByID(ctx, comment.ID)
		assert.True(t, models.IsNotFound(err, models.KindComment))
		listed, err := repo.Comments.ListByPost(ctx, "p1")
		require.NoError(t, err)
		for _, c := range listed {
			assert.NotEqual(t, comment.ID, c.ID)
		}
	})

	t.Run("update rejects a different owner", func(t *testing.T) {
		comment := newComment("p1", "Owner")
		require.NoError(t, repo.Comments.Save(ctx, comment))

		moved := *comment
		moved.PostID = "p9"
		err := repo.Comments.Update(ctx, &moved)
		assert.True(t, models.IsNotFound(err, models.KindComment))

		got, err := repo.Comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, "p1", got.PostID)
	})

	t.Run("list comments by post", func(t *testing.T) {
		var ids []string
		for i := 0; i < 3; i++ {
			comment := newComment("p2", "List Test Author")
			require.NoError(t, repo.Comments.Save(ctx, comment))
			ids = append(ids, comment.ID)
		}
		require.NoError(t, repo.Comments.Save(ctx, newComment("p3", "Other")))

		comments, err := repo.Comments.ListByPost(ctx, "p2")
		require.NoError(t, err)
		var got []string
		for _, c := range comments {
			assert.Equal(t, "p2", c.PostID)
			got = append(got, c.ID)
		}
		assert.ElementsMatch(t, ids, got)

		comments, err = repo.Comments.ListByPost(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, comments)
	})

	t.Run("moving a comment updates the index", func(t *testing.T) {
		comment := newComment("p4", "Mover")
		require.NoError(t, repo.Comments.Save(ctx, comment))
		comment.PostID = "p5"
		require.NoError(t, repo.Comments.Save(ctx, comment))

		old, err := repo.Comments.ListByPost(ctx, "p4")
		require.NoError(t, err)
		assert.Empty(t, old)

		moved, err := repo.Comments.ListByPost(ctx, "p5")
		require.NoError(t, err)
		require.Len(t, moved, 1)
		assert.Equal(t, comment.ID, moved[0].ID)
	})

	t.Run("delete comment", func(t *testing.T) {
		comment := newComment("p6", "Author to Delete")
		require.NoError(t, repo.Comments.Save(ctx, comment))
		require.NoError(t, repo.Comments.Delete(ctx, comment.ID))

		_, err := repo.Comments.GetByID(ctx, comment.ID)
		assert.True(t, models.IsNotFound(err, models.KindComment))

		listed, err := repo.Comments.ListByPost(ctx, "p6")
		require.NoError(t, err)
		assert.Empty(t, listed)

		err = repo.Comments.Delete(ctx, comment.ID)
		assert.True(t, models.IsNotFound(err, models.KindComment))
	})
}

func TestImportLedger(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, false)

	entry, err := repo.Imports.Lookup(ctx, "feed.example", 7)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, repo.Imports.Record(ctx, models.ImportEntry{
		Source: "feed.example", ExternalID: 7, PostID: "p1", Fingerprint: "abc",
	}))

	entry, err = repo.Imports.Lookup(ctx, "feed.example", 7)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "p1", entry.PostID)
	assert.False(t, entry.ImportedAt.IsZero())

	other, err := repo.Imports.Lookup(ctx, "other.example", 7)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("op", nil))

	nf := models.PostNotFound("p1")
	assert.Same(t, nf, translate("op", nf))

	conflict := translate("op", badger.ErrConflict)
	assert.True(t, models.IsConflict(conflict))

	failure := translate("get post", errors.New("disk on fire"))
	assert.True(t, errors.Is(failure, models.ErrStoreUnavailable))
	assert.Contains(t, failure.Error(), "get post: disk on fire")
	var storeErr *StoreError
	assert.True(t, errors.As(failure, &storeErr))
}

func TestMarshalEntity(t *testing.T) {
	t.Run("round trip comment", func(t *testing.T) {
		comment := &models.Comment{ID: "c1", PostID: "p2", Name: "Test Author", Body: "Test Body"}
		data, err := marshalEntity(comment)
		require.NoError(t, err)

		var unmarshaled models.Comment
		require.NoError(t, unmarshalEntity(data, &unmarshaled))
		assert.Equal(t, *comment, unmarshaled)
	})

	t.Run("marshal invalid entity", func(t *testing.T) {
		_, err := marshalEntity(struct{ Ch chan int }{Ch: make(chan int)})
		assert.Error(t, err)
	})

	t.Run("unmarshal invalid JSON", func(t *testing.T) {
		var post models.Post
		assert.Error(t, unmarshalEntity([]byte(`{"id":1,invalid json}`), &post))
	})
}

func TestRepositoryStats(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, false)
	assert.Equal(t, "", repo.Path())

	post := &models.Post{Title: "t", Body: "b"}
	require.NoError(t, repo.Posts.Save(ctx, post))
	for i := 0; i < 2; i++ {
		comment := &models.Comment{PostID: post.ID, Email: "a@b.com", Name: "Ann", Body: "hi"}
		require.NoError(t, repo.Comments.Save(ctx, comment))
	}
	require.NoError(t, repo.Imports.Record(ctx, models.ImportEntry{Source: "feed", ExternalID: 1, PostID: post.ID}))

	counts, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, Counts{Posts: 1, Comments: 2, Imports: 1}, counts)

	require.NoError(t, repo.Clear())
	counts, err = repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestRepositoryOnDisk(t *testing.T) {
	dir := t.TempDir() + "/badger"
	repo, err := NewRepository(Options{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, repo.Path())
	assert.DirExists(t, dir)
	require.NoError(t, repo.Close())
}

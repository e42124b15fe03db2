package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postkeeper/app/feed"
	"postkeeper/app/models"
	"postkeeper/app/repositories"
	"postkeeper/app/repositories/mock"
)

type stubFeed struct {
	records     []feed.Record
	err         error
	calls       int
	invalidated int
}

func (f *stubFeed) Invalidate() { f.invalidated++ }

func (f *stubFeed) FetchAll(ctx context.Context) ([]feed.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]feed.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *stubFeed) Source() string { return "stub" }

func threeRecords() []feed.Record {
	return []feed.Record{
		{ID: 1, UserID: 1, Title: "one", Body: "first body"},
		{ID: 2, UserID: 1, Title: "two", Body: "second body"},
		{ID: 3, UserID: 2, Title: "three", Body: "third body"},
	}
}

func TestSyncCreatesPosts(t *testing.T) {
	ctx := context.Background()
	posts := mock.NewPostRepository()
	service := NewSyncService(posts, nil, &stubFeed{records: threeRecords()}, SyncOptions{})

	created, err := service.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, created, 3)

	for i, title := range []string{"one", "two", "three"} {
		assert.NotEmpty(t, created[i].ID)
		assert.Equal(t, title, created[i].Title)
		assert.Empty(t, created[i].Comments)

		stored, err := posts.GetByID(ctx, created[i].ID)
		require.NoError(t, err)
		assert.Equal(t, title, stored.Title)
	}
	assert.Equal(t, 3, posts.Count())
}

func TestSyncTwiceDuplicates(t *testing.T) {
	ctx := context.Background()
	posts := mock.NewPostRepository()
	source := &stubFeed{records: threeRecords()}
	service := NewSyncService(posts, mock.NewImportLedger(), source, SyncOptions{})

	first, err := service.Sync(ctx)
	require.NoError(t, err)
	second, err := service.Sync(ctx)
	require.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Len(t, second, 3)
	assert.Equal(t, 6, posts.Count())
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestSyncFetchFailureWritesNothing(t *testing.T) {
	posts := mock.NewPostRepository()
	service := NewSyncService(posts, nil, &stubFeed{err: feed.ErrUnavailable}, SyncOptions{})

	created, err := service.Sync(context.Background())
	assert.ErrorIs(t, err, feed.ErrUnavailable)
	assert.Nil(t, created)
	assert.Equal(t, 0, posts.Writes())
}

func TestSyncSaveFailureKeepsEarlierPosts(t *testing.T) {
	posts := mock.NewPostRepository()
	saves := 0
	posts.SaveErr = func(*models.Post) error {
		saves++
		if saves == 3 {
			return errStoreDown
		}
		return nil
	}
	service := NewSyncService(posts, nil, &stubFeed{records: threeRecords()}, SyncOptions{})

	created, err := service.Sync(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, created, 2)
	assert.Equal(t, 2, posts.Count())
}

func TestSyncSkipsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	records := []feed.Record{
		{ID: 1, Title: "one", Body: "first body"},
		{ID: 2, Title: "", Body: ""},
		{ID: 3, Title: "three", Body: ""},
		{ID: 4, Title: "four", Body: "fourth body"},
	}

	t.Run("plain", func(t *testing.T) {
		posts := mock.NewPostRepository()
		service := NewSyncService(posts, nil, &stubFeed{records: records}, SyncOptions{})

		created, result, err := service.Run(ctx)
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "one", created[0].Title)
		assert.Equal(t, "four", created[1].Title)
		assert.Equal(t, SyncResult{Created: 2, Invalid: 2}, result)
		assert.Equal(t, 2, posts.Writes())

		for _, post := range created {
			stored, err := posts.GetByID(ctx, post.ID)
			require.NoError(t, err)
			assert.NoError(t, stored.Validate())
		}
	})

	t.Run("dedupe records nothing for rejected records", func(t *testing.T) {
		posts := mock.NewPostRepository()
		ledger := mock.NewImportLedger()
		service := NewSyncService(posts, ledger, &stubFeed{records: records}, SyncOptions{Dedupe: true})

		_, result, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Created: 2, Invalid: 2}, result)

		entry, err := ledger.Lookup(ctx, "stub", 2)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("changed record that became invalid keeps the old content", func(t *testing.T) {
		posts := mock.NewPostRepository()
		source := &stubFeed{records: threeRecords()}
		service := NewSyncService(posts, mock.NewImportLedger(), source, SyncOptions{Dedupe: true})

		created, err := service.Sync(ctx)
		require.NoError(t, err)
		writes := posts.Writes()

		source.records[0].Body = ""
		_, result, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Skipped: 2, Invalid: 1}, result)
		assert.Equal(t, writes, posts.Writes())

		stored, err := posts.GetByID(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "first body", stored.Body)
	})
}

func TestSyncInvalidatesCachedFeed(t *testing.T) {
	ctx := context.Background()

	source := &stubFeed{records: threeRecords()}
	plain := NewSyncService(mock.NewPostRepository(), nil, source, SyncOptions{})
	_, err := plain.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, source.invalidated)

	deduped := NewSyncService(mock.NewPostRepository(), mock.NewImportLedger(), source, SyncOptions{Dedupe: true})
	_, err = deduped.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.invalidated)

	source.err = feed.ErrUnavailable
	_, err = deduped.Sync(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, source.invalidated)
}

func TestSyncDedupe(t *testing.T) {
	ctx := context.Background()

	t.Run("second run skips unchanged records", func(t *testing.T) {
		posts := mock.NewPostRepository()
		ledger := mock.NewImportLedger()
		service := NewSyncService(posts, ledger, &stubFeed{records: threeRecords()}, SyncOptions{Dedupe: true})

		created, result, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Len(t, created, 3)
		assert.Equal(t, SyncResult{Created: 3}, result)
		assert.Equal(t, 3, ledger.Len())

		created, result, err = service.Run(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Equal(t, SyncResult{Skipped: 3}, result)
		assert.Equal(t, 3, posts.Count())
	})

	t.Run("changed record refreshes the post and keeps comments", func(t *testing.T) {
		posts := mock.NewPostRepository()
		comments := mock.NewCommentRepository()
		source := &stubFeed{records: threeRecords()}
		service := NewSyncService(posts, mock.NewImportLedger(), source, SyncOptions{Dedupe: true})

		created, err := service.Sync(ctx)
		require.NoError(t, err)
		target := created[1]

		coordinator := NewCommentService(posts, comments, CommentOptions{})
		_, err = coordinator.CreateComment(ctx, target.ID, commentInput("Ann"))
		require.NoError(t, err)

		source.records[1].Title = "two, revised"
		created, result, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Equal(t, SyncResult{Refreshed: 1, Skipped: 2}, result)

		stored, err := posts.GetByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, "two, revised", stored.Title)
		assert.Len(t, stored.Comments, 1)
	})

	t.Run("deleted post is imported again", func(t *testing.T) {
		posts := mock.NewPostRepository()
		service := NewSyncService(posts, mock.NewImportLedger(), &stubFeed{records: threeRecords()}, SyncOptions{Dedupe: true})

		created, err := service.Sync(ctx)
		require.NoError(t, err)
		require.NoError(t, posts.Delete(ctx, created[0].ID))

		again, result, err := service.Run(ctx)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, "one", again[0].Title)
		assert.Equal(t, SyncResult{Created: 1, Skipped: 2}, result)
		assert.Equal(t, 3, posts.Count())
	})

	t.Run("ledger failure reports the created post", func(t *testing.T) {
		posts := mock.NewPostRepository()
		ledger := mock.NewImportLedger()
		ledger.RecordErr = func(models.ImportEntry) error { return errStoreDown }
		service := NewSyncService(posts, ledger, &stubFeed{records: threeRecords()}, SyncOptions{Dedupe: true})

		created, err := service.Sync(ctx)
		assert.True(t, errors.Is(err, errStoreDown))
		assert.Len(t, created, 1)
		assert.Equal(t, 1, posts.Count())
	})
}

func TestFingerprint(t *testing.T) {
	a := feed.Record{ID: 1, Title: "ab", Body: "c"}
	b := feed.Record{ID: 2, Title: "a", Body: "bc"}
	assert.NotEqual(t, fingerprint(a), fingerprint(b))
	assert.Len(t, fingerprint(a), 64)

	a.UserID = 42
	assert.Equal(t, fingerprint(a), fingerprint(feed.Record{Title: "ab", Body: "c"}))
}

func TestSyncThenCommentOnBadger(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "userId": 1, "title": "one", "body": "first body"},
			{"id": 2, "userId": 1, "title": "two", "body": "second body"},
			{"id": 3, "userId": 2, "title": "three", "body": "third body"}
		]`))
	}))
	defer srv.Close()

	client, err := feed.New(srv.URL, "/posts", feed.Options{})
	require.NoError(t, err)

	repo, err := repositories.NewRepository(repositories.Options{})
	require.NoError(t, err)
	defer repo.Close()

	syncer := NewSyncService(repo.Posts, repo.Imports, client, SyncOptions{Dedupe: true})
	created, err := syncer.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, created, 3)

	again, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := repo.Posts.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	comments := NewCommentService(repo.Posts, repo.Comments, CommentOptions{})
	comment, err := comments.CreateComment(ctx, created[0].ID, models.CommentInput{Email: "a@b.com", Name: "Ann", Body: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)

	list, err := comments.ListComments(ctx, created[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, comment.ID, list[0].ID)
}

func TestDedupeSyncRefetchesCachedFeed(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "userId": 1, "title": "one", "body": "first body"}]`))
	}))
	defer srv.Close()

	client, err := feed.New(srv.URL, "/posts", feed.Options{CacheTTL: time.Hour})
	require.NoError(t, err)

	syncer := NewSyncService(mock.NewPostRepository(), mock.NewImportLedger(), client, SyncOptions{Dedupe: true})
	_, err = syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	_, err = client.FetchAll(ctx)
	require.NoError(t, err)
	_, err = client.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"mindcare/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// BlogStore
// ============================================================================

func (s *Store) CreateBlog(ctx context.Context, blog *model.Blog) error {
	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	return insertOne(ctx, s.col(ColBlogs), blog)
}

func (s *Store) GetBlog(ctx context.Context, id string) (*model.Blog, error) {
	return findOne[model.Blog](ctx, s.col(ColBlogs), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) UpdateBlog(ctx context.Context, blog *model.Blog) error {
	if blog.UpdatedAt.IsZero() {
		blog.UpdatedAt = time.Now()
	}
	tags := blog.Tags
	if tags == nil {
		tags = []string{}
	}
	return updateFields(ctx, s.col(ColBlogs), blog.ID, bson.D{
		{Key: "title", Value: blog.Title},
		{Key: "content", Value: blog.Content},
		{Key: "preview_content", Value: blog.PreviewContent},
		{Key: "search_text", Value: blog.SearchText},
		{Key: "tags", Value: tags},
		{Key: "updated_at", Value: blog.UpdatedAt},
	})
}

func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColBlogs), id)
}

func (s *Store) ListBlogs(ctx context.Context, q model.BlogQuery) ([]*model.Blog, int64, error) {
	filter := bson.D{}
	if q.AuthorID != "" {
		filter = append(filter, bson.E{Key: "author_id", Value: q.AuthorID})
	}
	if q.Search != "" {
		// search_text 已小写
		re := bson.Regex{Pattern: regexp.QuoteMeta(strings.ToLower(q.Search))}
		filter = append(filter, bson.E{Key: "search_text", Value: re})
	}
	if len(q.Tags) > 0 {
		filter = append(filter, bson.E{Key: "tags", Value: bson.D{{Key: "$in", Value: q.Tags}}})
	}

	total, err := countDocs(ctx, s.col(ColBlogs), filter)
	if err != nil {
		return nil, 0, err
	}

	dir := -1
	if q.Sort == model.BlogSortOldest {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetSkip(int64(q.Offset)).SetLimit(int64(q.Limit))
	}

	blogs, err := findMany[model.Blog](ctx, s.col(ColBlogs), filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return blogs, total, nil
}

func (s *Store) CountBlogs(ctx context.Context) (int64, error) {
	return countDocs(ctx, s.col(ColBlogs), bson.D{})
}

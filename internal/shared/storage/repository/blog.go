package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage/dbutil"
)

const blogColumns = `id, title, content, preview_content, search_text, tags, author_id, created_at, updated_at`

func scanBlog(row rowScanner) (*model.Blog, error) {
	b := &model.Blog{}
	var tags string
	if err := row.Scan(&b.ID, &b.Title, &b.Content, &b.PreviewContent, &b.SearchText, &tags, &b.AuthorID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

// CreateBlog 创建文章
func (s *Store) CreateBlog(ctx context.Context, b *model.Blog) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO blogs (`+blogColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		b.ID, b.Title, b.Content, b.PreviewContent, b.SearchText, encodeTags(b.Tags), b.AuthorID, b.CreatedAt, b.UpdatedAt)
	return s.wrapError(err)
}

// GetBlog 获取文章
func (s *Store) GetBlog(ctx context.Context, id string) (*model.Blog, error) {
	b, err := scanBlog(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+blogColumns+` FROM blogs WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// UpdateBlog 更新文章内容
func (s *Store) UpdateBlog(ctx context.Context, b *model.Blog) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now()
	}
	return s.exec(ctx,
		`UPDATE blogs SET title = $1, content = $2, preview_content = $3, search_text = $4, tags = $5, updated_at = $6 WHERE id = $7`,
		b.Title, b.Content, b.PreviewContent, b.SearchText, encodeTags(b.Tags), b.UpdatedAt, b.ID)
}

// DeleteBlog 删除文章
func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
}

// ListBlogs 按条件分页列出文章
//
// 搜索匹配已小写的 search_text，不使用 LOWER（SQLite 只折叠 ASCII）；
// 标签以 JSON 数组文本存储，标签过滤匹配 `"tag"` 子串
func (s *Store) ListBlogs(ctx context.Context, q model.BlogQuery) ([]*model.Blog, int64, error) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if q.AuthorID != "" {
		conds = append(conds, "author_id = "+next(q.AuthorID))
	}
	if q.Search != "" {
		pattern := "%" + dbutil.EscapeLike(strings.ToLower(q.Search)) + "%"
		conds = append(conds, "search_text LIKE "+next(pattern)+` ESCAPE '\'`)
	}
	if len(q.Tags) > 0 {
		var ors []string
		for _, tag := range q.Tags {
			quoted, _ := json.Marshal(tag)
			ors = append(ors, "tags LIKE "+next("%"+dbutil.EscapeLike(string(quoted))+"%")+` ESCAPE '\'`)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	total, err := s.count(ctx, `SELECT COUNT(*) FROM blogs`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	order := " ORDER BY created_at DESC, id DESC"
	if q.Sort == model.BlogSortOldest {
		order = " ORDER BY created_at ASC, id ASC"
	}
	query := `SELECT ` + blogColumns + ` FROM blogs` + where + order
	if q.Limit > 0 {
		query += " LIMIT " + next(q.Limit) + " OFFSET " + next(q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	blogs := []*model.Blog{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, 0, err
		}
		blogs = append(blogs, b)
	}
	return blogs, total, rows.Err()
}

// CountBlogs 文章总数
func (s *Store) CountBlogs(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM blogs`)
}

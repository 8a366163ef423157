// Package blog 用户文章：公开列表与检索、作者管理、配图上传
package blog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/objstore"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

const (
	DefaultPageSize = 9
	MaxPageSize     = 50

	maxTitleLength  = 200
	maxSearchLength = 100
	maxTags         = 10
	maxTagLength    = 30

	imagePrefix = "blog-images/"
)

// ErrImagesDisabled 未配置对象存储
var ErrImagesDisabled = errors.New("object storage is not configured")

// AccountReader 作者展开与管理员判定
type AccountReader interface {
	storage.ParticipantReader
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// ImageStore 配图对象存储（objstore.Client 实现）
type ImageStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (*objstore.Object, error)
	PublicURL(key string) string
}

// Input 创建 / 更新文章的字段
type Input struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// ListParams 列表查询参数
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Sort   string
	Tags   []string
}

// ListResult 分页结果
type ListResult struct {
	Blogs   []*model.Blog
	Total   int64
	Page    int
	HasMore bool
}

// Service 文章业务
type Service struct {
	blogs    storage.BlogStore
	accounts AccountReader
	images   ImageStore
	logger   *logging.Logger
	now      func() time.Time
}

// NewService 创建文章服务，images 为 nil 时禁用配图上传
func NewService(blogs storage.BlogStore, accounts AccountReader, images ImageStore, logger *logging.Logger) *Service {
	return &Service{
		blogs:    blogs,
		accounts: accounts,
		images:   images,
		logger:   logger.Component("blog"),
		now:      time.Now,
	}
}

// List 公开文章列表
func (s *Service) List(ctx context.Context, p ListParams) (*ListResult, error) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	search := strings.TrimSpace(p.Search)
	if utf8.RuneCountInString(search) > maxSearchLength {
		return nil, apperr.Validation("Search must be at most %d characters", maxSearchLength)
	}
	sort := model.BlogSortNewest
	switch p.Sort {
	case "", string(model.BlogSortNewest):
	case string(model.BlogSortOldest):
		sort = model.BlogSortOldest
	default:
		return nil, apperr.Validation("Invalid sort %q", p.Sort)
	}

	blogs, total, err := s.blogs.ListBlogs(ctx, model.BlogQuery{
		Search: search,
		Tags:   normalizeTags(p.Tags),
		Sort:   sort,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	if err := s.expandAuthors(ctx, blogs); err != nil {
		return nil, err
	}
	return &ListResult{
		Blogs:   blogs,
		Total:   total,
		Page:    page,
		HasMore: int64(page*limit) < total,
	}, nil
}

// Get 单篇文章
func (s *Service) Get(ctx context.Context, id string) (*model.Blog, error) {
	blog, err := s.blogs.GetBlog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	if blog == nil {
		return nil, apperr.NotFound("Blog not found")
	}
	if err := s.expandAuthors(ctx, []*model.Blog{blog}); err != nil {
		return nil, err
	}
	return blog, nil
}

// ListAll 全部文章（管理后台）
func (s *Service) ListAll(ctx context.Context) ([]*model.Blog, error) {
	blogs, _, err := s.blogs.ListBlogs(ctx, model.BlogQuery{Sort: model.BlogSortNewest})
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	if err := s.expandAuthors(ctx, blogs); err != nil {
		return nil, err
	}
	return blogs, nil
}

// MyBlogs 作者自己的文章，最新在前
func (s *Service) MyBlogs(ctx context.Context, authorID string) ([]*model.Blog, error) {
	blogs, _, err := s.blogs.ListBlogs(ctx, model.BlogQuery{AuthorID: authorID, Sort: model.BlogSortNewest})
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	if err := s.expandAuthors(ctx, blogs); err != nil {
		return nil, err
	}
	return blogs, nil
}

// Create 发布文章
func (s *Service) Create(ctx context.Context, authorID string, in Input) (*model.Blog, error) {
	in, err := validateInput(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	blog := &model.Blog{
		ID:             model.NewID(model.PrefixBlog),
		Title:          in.Title,
		Content:        in.Content,
		PreviewContent: Preview(in.Content),
		SearchText:     SearchText(in.Title, in.Content, in.Tags),
		Tags:           in.Tags,
		AuthorID:       authorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.blogs.CreateBlog(ctx, blog); err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	if err := s.expandAuthors(ctx, []*model.Blog{blog}); err != nil {
		return nil, err
	}
	return blog, nil
}

// Update 修改文章（作者或管理员）
func (s *Service) Update(ctx context.Context, callerID, id string, in Input) (*model.Blog, error) {
	in, err := validateInput(in)
	if err != nil {
		return nil, err
	}
	blog, err := s.editable(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	blog.Title = in.Title
	blog.Content = in.Content
	blog.PreviewContent = Preview(in.Content)
	blog.SearchText = SearchText(in.Title, in.Content, in.Tags)
	blog.Tags = in.Tags
	blog.UpdatedAt = s.now().UTC()
	if err := s.blogs.UpdateBlog(ctx, blog); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Blog not found")
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	if err := s.expandAuthors(ctx, []*model.Blog{blog}); err != nil {
		return nil, err
	}
	return blog, nil
}

// Delete 删除文章（作者或管理员）
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.editable(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.blogs.DeleteBlog(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Blog not found")
		}
		return fmt.Errorf("delete blog: %w", err)
	}
	return nil
}

// editable 读取文章并校验调用者为作者或管理员
func (s *Service) editable(ctx context.Context, callerID, id string) (*model.Blog, error) {
	blog, err := s.blogs.GetBlog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	if blog == nil {
		return nil, apperr.NotFound("Blog not found")
	}
	if blog.AuthorID == callerID {
		return blog, nil
	}
	caller, err := s.accounts.GetAccount(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("get caller: %w", err)
	}
	if !auth.IsAdmin(caller) {
		return nil, apperr.Forbidden("Not authorized to modify this blog")
	}
	return blog, nil
}

// ImagesEnabled 是否可以上传配图
func (s *Service) ImagesEnabled() bool {
	return s.images != nil
}

// UploadImage 保存配图并返回访问地址
func (s *Service) UploadImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.images == nil {
		return "", ErrImagesDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation("Only image uploads are allowed")
	}
	name := model.NewID("img") + strings.ToLower(path.Ext(filename))
	key := imagePrefix + name
	if err := s.images.Upload(ctx, key, r, size, contentType); err != nil {
		return "", apperr.Unavailable(err, "Failed to store image")
	}
	if u := s.images.PublicURL(key); u != "" {
		return u, nil
	}
	return "/api/blogs/images/" + name, nil
}

// OpenImage 读取配图，不存在返回 NotFound
func (s *Service) OpenImage(ctx context.Context, name string) (*objstore.Object, error) {
	if s.images == nil {
		return nil, ErrImagesDisabled
	}
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, apperr.NotFound("Image not found")
	}
	obj, err := s.images.Download(ctx, imagePrefix+name)
	if err != nil {
		return nil, apperr.Unavailable(err, "Failed to read image")
	}
	if obj == nil {
		return nil, apperr.NotFound("Image not found")
	}
	return obj, nil
}

// expandAuthors 展开作者（不含邮箱）
func (s *Service) expandAuthors(ctx context.Context, blogs []*model.Blog) error {
	if len(blogs) == 0 {
		return nil
	}
	ids := make([]string, len(blogs))
	for i, b := range blogs {
		ids[i] = b.AuthorID
	}
	lookup, err := storage.LookupParticipants(ctx, s.accounts, ids)
	if err != nil {
		return fmt.Errorf("get authors: %w", err)
	}
	for _, b := range blogs {
		b.Author = lookup(b.AuthorID).Public()
	}
	return nil
}

func validateInput(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return in, apperr.Validation("Title and content are required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return in, apperr.Validation("Title must be at most %d characters", maxTitleLength)
	}
	in.Tags = normalizeTags(in.Tags)
	if len(in.Tags) > maxTags {
		return in, apperr.Validation("At most %d tags are allowed", maxTags)
	}
	for _, tag := range in.Tags {
		if utf8.RuneCountInString(tag) > maxTagLength {
			return in, apperr.Validation("Tag %q is longer than %d characters", tag, maxTagLength)
		}
	}
	return in, nil
}

// normalizeTags 去空白、去空、去重（保留首次出现的顺序）
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

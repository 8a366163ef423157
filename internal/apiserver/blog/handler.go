package blog

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/pkg/logging"
)

// MaxImageSize 单张配图上限
const MaxImageSize = 5 << 20

// Handler 文章 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *logging.Logger
}

// NewHandler 创建文章处理器
func NewHandler(svc *Service, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger.Component("blog")}
}

// RegisterRoutes 注册文章路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/blogs", h.List)
	mux.HandleFunc("GET /api/blogs/my-blogs", h.guard.Require(h.MyBlogs))
	mux.HandleFunc("GET /api/blogs/{blogId}", h.Get)
	mux.HandleFunc("POST /api/blogs", h.guard.Require(h.Create))
	mux.HandleFunc("PUT /api/blogs/{blogId}", h.guard.Require(h.Update))
	mux.HandleFunc("DELETE /api/blogs/{blogId}", h.guard.Require(h.Delete))
	mux.HandleFunc("POST /api/blogs/images", h.guard.Require(h.UploadImage))
	mux.HandleFunc("GET /api/blogs/images/{name}", h.GetImage)
}

// List 公开文章列表
//
// 路由: GET /api/blogs?page=&limit=&search=&sort=newest|oldest&tags=a,b
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tags []string
	if v := q.Get("tags"); v != "" {
		tags = strings.Split(v, ",")
	}
	res, err := h.svc.List(r.Context(), ListParams{
		Page:   httpx.QueryInt(r, "page", 1),
		Limit:  httpx.QueryInt(r, "limit", DefaultPageSize),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Tags:   tags,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{
		"blogs":   res.Blogs,
		"total":   res.Total,
		"page":    res.Page,
		"hasMore": res.HasMore,
	})
}

// Get 单篇文章
//
// 路由: GET /api/blogs/{blogId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	blog, err := h.svc.Get(r.Context(), r.PathValue("blogId"))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"blog": blog})
}

// MyBlogs 当前账号的文章
//
// 路由: GET /api/blogs/my-blogs
func (h *Handler) MyBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.MyBlogs(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"blogs": blogs})
}

// Create 发布文章
//
// 路由: POST /api/blogs
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	blog, err := h.svc.Create(r.Context(), auth.AccountID(r.Context()), in)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"message": "Blog created successfully", "blog": blog})
}

// Update 修改文章
//
// 路由: PUT /api/blogs/{blogId}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	blog, err := h.svc.Update(r.Context(), auth.AccountID(r.Context()), r.PathValue("blogId"), in)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"message": "Blog updated successfully", "blog": blog})
}

// Delete 删除文章
//
// 路由: DELETE /api/blogs/{blogId}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.AccountID(r.Context()), r.PathValue("blogId")); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Blog deleted successfully")
}

// UploadImage 上传配图（multipart 字段 image）
//
// 路由: POST /api/blogs/images
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.svc.ImagesEnabled() {
		httpx.Fail(w, http.StatusServiceUnavailable, "Image uploads are not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid upload (max 5 MiB)")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()
	if header.Size > MaxImageSize {
		httpx.Fail(w, http.StatusBadRequest, "Image must be at most 5 MiB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			httpx.Error(w, r, h.logger, err)
			return
		}
	}

	url, err := h.svc.UploadImage(r.Context(), header.Filename, file, header.Size, contentType)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"url": url})
}

// GetImage 读取配图
//
// 路由: GET /api/blogs/images/{name}
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.OpenImage(r.Context(), r.PathValue("name"))
	if errors.Is(err, ErrImagesDisabled) {
		httpx.Fail(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Debug("image stream interrupted")
	}
}

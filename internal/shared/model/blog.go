package model

import "time"

// Blog 用户撰写的文章
//
// PreviewContent 由 Content 派生（纯文本，去除图片），用于列表展示；
// SearchText 为标题、完整正文纯文本与标签的小写拼接，仅供搜索
type Blog struct {
	ID             string       `json:"_id" bson:"_id" db:"id"`
	Title          string       `json:"title" bson:"title" db:"title"`
	Content        string       `json:"content" bson:"content" db:"content"`
	PreviewContent string       `json:"previewContent" bson:"preview_content" db:"preview_content"`
	SearchText     string       `json:"-" bson:"search_text" db:"search_text"`
	Tags           []string     `json:"tags" bson:"tags" db:"tags"`
	AuthorID       string       `json:"-" bson:"author_id" db:"author_id"`
	Author         *Participant `json:"author,omitempty" bson:"-" db:"-"`
	CreatedAt      time.Time    `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

// BlogSort 列表排序
type BlogSort string

const (
	BlogSortNewest BlogSort = "newest"
	BlogSortOldest BlogSort = "oldest"
)

// BlogQuery 文章列表查询条件
type BlogQuery struct {
	Search   string   // 标题 / 正文 / 标签 的不区分大小写子串匹配（SearchText）
	Tags     []string // 命中任一标签
	AuthorID string
	Sort     BlogSort
	Offset   int
	Limit    int // 0 表示不限
}

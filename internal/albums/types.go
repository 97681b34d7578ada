package albums

import (
	"strconv"
	"time"
)

// Album 相册。列表接口不含 Images，详情接口填充。
type Album struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	PhotoCount  int
	Images      []Photo
	// ShareToken 当前有效的共享 token，无共享链接时为空
	ShareToken string
}

// Photo 照片。URL 为绝对 CDN 地址或需要认证的后端相对路径。
type Photo struct {
	ID          string
	Name        string
	Description string
	URL         string
	CreatedAt   time.Time
}

// ShareLink 共享链接
type ShareLink struct {
	ID        string
	Token     string
	IsActive  bool
	ExpiresAt time.Time
}

// SharedAlbum 通过共享 token 获取的只读相册视图
type SharedAlbum struct {
	Name        string
	Description string
	CreatedAt   time.Time
	Images      []Photo
}

// --- 后端 DTO ---

type albumResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
	PhotoCount  int             `json:"photo_count"`
	Photos      []photoResponse `json:"photos"`
}

type photoResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	CreatedAt   string `json:"created_at"`
}

type shareLinkResponse struct {
	ID        int64  `json:"id"`
	Token     string `json:"token"`
	IsActive  bool   `json:"is_active"`
	ExpiresAt string `json:"expires_at"`
}

type sharedAlbumResponse struct {
	AlbumName        string          `json:"album_name"`
	AlbumDescription string          `json:"album_description"`
	CreatedAt        string          `json:"created_at"`
	Photos           []photoResponse `json:"photos"`
}

type createAlbumRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateAlbumRequest struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	CoverPhotoID *int64  `json:"cover_photo_id"`
}

type deletePhotosRequest struct {
	PhotoIDs []int64 `json:"photo_ids"`
}

type createShareRequest struct {
	ExpiresInDays int `json:"expires_in_days"`
}

// --- 映射 ---

// parseTimestamp 容忍空值和非法时间戳
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func mapAlbum(resp *albumResponse) *Album {
	album := &Album{
		ID:          strconv.FormatInt(resp.ID, 10),
		Name:        resp.Name,
		Description: resp.Description,
		CreatedAt:   parseTimestamp(resp.CreatedAt),
		PhotoCount:  resp.PhotoCount,
	}
	for i := range resp.Photos {
		album.Images = append(album.Images, mapPhoto(&resp.Photos[i]))
	}
	if album.PhotoCount == 0 {
		album.PhotoCount = len(album.Images)
	}
	return album
}

func mapPhoto(resp *photoResponse) Photo {
	return Photo{
		ID:          strconv.FormatInt(resp.ID, 10),
		Name:        resp.Title,
		Description: resp.Description,
		URL:         resp.URL,
		CreatedAt:   parseTimestamp(resp.CreatedAt),
	}
}

func mapShareLink(resp *shareLinkResponse) ShareLink {
	return ShareLink{
		ID:        strconv.FormatInt(resp.ID, 10),
		Token:     resp.Token,
		IsActive:  resp.IsActive,
		ExpiresAt: parseTimestamp(resp.ExpiresAt),
	}
}

func mapSharedAlbum(resp *sharedAlbumResponse) *SharedAlbum {
	shared := &SharedAlbum{
		Name:        resp.AlbumName,
		Description: resp.AlbumDescription,
		CreatedAt:   parseTimestamp(resp.CreatedAt),
	}
	for i := range resp.Photos {
		shared.Images = append(shared.Images, mapPhoto(&resp.Photos[i]))
	}
	return shared
}

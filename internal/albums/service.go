package albums

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/anoixa/album-client/api"
)

// 共享链接访问失败的哨兵错误
var (
	// ErrShareNotFound 共享链接不存在或已被删除
	ErrShareNotFound = api.NewError(api.KindRequestFailed, "This share link could not be found.")
	// ErrShareExpired 共享链接已过期或被停用
	ErrShareExpired = api.NewError(api.KindRequestFailed, "This share link has expired or was revoked.")
)

// Service 相册集合存储。
// 本地集合只在服务端确认后才更新，失败不产生任何本地变更。
type Service struct {
	client *api.Client

	shareExpiresDays int

	mu     sync.RWMutex
	albums []*Album
}

// NewService 创建相册集合存储
func NewService(client *api.Client, shareExpiresDays int) *Service {
	if shareExpiresDays <= 0 {
		shareExpiresDays = 30
	}
	return &Service{client: client, shareExpiresDays: shareExpiresDays}
}

// Albums 返回集合快照
func (s *Service) Albums() []*Album {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Album, len(s.albums))
	for i, album := range s.albums {
		copied := *album
		result[i] = &copied
	}
	return result
}

// FetchAlbums 拉取相册列表并替换本地集合。列表不含照片。
func (s *Service) FetchAlbums(ctx context.Context) ([]*Album, error) {
	var resp []albumResponse
	if err := s.client.Request(ctx, http.MethodGet, api.EndpointAlbums(), nil, &resp); err != nil {
		return nil, err
	}

	albums := make([]*Album, 0, len(resp))
	for i := range resp {
		album := mapAlbum(&resp[i])
		album.Images = nil // 列表接口省略照片，详情时再加载
		albums = append(albums, album)
	}

	s.mu.Lock()
	s.albums = albums
	s.mu.Unlock()
	return s.Albums(), nil
}

// CreateAlbum 创建相册，服务端确认后追加到本地集合
func (s *Service) CreateAlbum(ctx context.Context, name, description string) (*Album, error) {
	var resp albumResponse
	req := createAlbumRequest{Name: name, Description: description}
	if err := s.client.Request(ctx, http.MethodPost, api.EndpointAlbums(), req, &resp); err != nil {
		return nil, err
	}

	album := mapAlbum(&resp)
	s.mu.Lock()
	s.albums = append(s.albums, album)
	s.mu.Unlock()

	copied := *album
	return &copied, nil
}

// UpdateAlbum 更新相册，服务端返回的记录覆盖本地副本
func (s *Service) UpdateAlbum(ctx context.Context, id, name string, description *string, coverPhotoID string) (*Album, error) {
	req := updateAlbumRequest{Name: name, Description: description}
	if coverPhotoID != "" {
		photoID, err := strconv.ParseInt(coverPhotoID, 10, 64)
		if err != nil {
			return nil, api.NewError(api.KindValidation, "Invalid cover photo reference.")
		}
		req.CoverPhotoID = &photoID
	}

	var resp albumResponse
	if err := s.client.Request(ctx, http.MethodPatch, api.EndpointAlbum(id), req, &resp); err != nil {
		return nil, err
	}

	album := mapAlbum(&resp)
	album.Images = nil

	s.mu.Lock()
	for i, existing := range s.albums {
		if existing.ID == album.ID {
			album.ShareToken = existing.ShareToken
			s.albums[i] = album
			break
		}
	}
	s.mu.Unlock()

	copied := *album
	return &copied, nil
}

// DeleteAlbum 删除相册。硬删除，确认对话框由调用方负责。
func (s *Service) DeleteAlbum(ctx context.Context, id string) error {
	if err := s.client.Request(ctx, http.MethodDelete, api.EndpointAlbum(id), nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	filtered := s.albums[:0]
	for _, album := range s.albums {
		if album.ID != id {
			filtered = append(filtered, album)
		}
	}
	s.albums = filtered
	s.mu.Unlock()
	return nil
}

// GetAlbum 获取相册详情（含照片），并附带查询共享链接。
// 共享链接属于非关键增强，查询失败静默忽略。
func (s *Service) GetAlbum(ctx context.Context, id string) (*Album, error) {
	var resp albumResponse
	if err := s.client.Request(ctx, http.MethodGet, api.EndpointAlbum(id), nil, &resp); err != nil {
		return nil, err
	}
	album := mapAlbum(&resp)

	links, err := s.fetchShareLinks(ctx, id)
	if err != nil {
		log.Printf("[Albums] Share link lookup failed for album %s: %v", id, err)
	} else {
		for _, link := range links {
			if link.IsActive {
				album.ShareToken = link.Token
				break
			}
		}
	}

	s.reconcile(album)
	copied := *album
	return &copied, nil
}

// DeletePhotos 从相册批量移除照片，确认后同步本地集合
func (s *Service) DeletePhotos(ctx context.Context, albumID string, photoIDs []string) error {
	ids := make([]int64, 0, len(photoIDs))
	for _, raw := range photoIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return api.NewError(api.KindValidation, "Invalid photo reference.")
		}
		ids = append(ids, id)
	}

	req := deletePhotosRequest{PhotoIDs: ids}
	if err := s.client.Request(ctx, http.MethodDelete, api.EndpointAlbumPhotos(albumID), req, nil); err != nil {
		return err
	}

	removed := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		removed[id] = true
	}

	s.mu.Lock()
	for _, album := range s.albums {
		if album.ID != albumID {
			continue
		}
		// 新分配切片，避免改写已交出的快照共享的底层数组
		filtered := make([]Photo, 0, len(album.Images))
		for _, photo := range album.Images {
			if !removed[photo.ID] {
				filtered = append(filtered, photo)
			}
		}
		album.Images = filtered
		album.PhotoCount = len(filtered)
	}
	s.mu.Unlock()
	return nil
}

// CreateShareLink 创建共享链接，返回 token
func (s *Service) CreateShareLink(ctx context.Context, albumID string) (string, error) {
	var resp shareLinkResponse
	req := createShareRequest{ExpiresInDays: s.shareExpiresDays}
	if err := s.client.Request(ctx, http.MethodPost, api.EndpointAlbumShare(albumID), req, &resp); err != nil {
		return "", err
	}

	s.mu.Lock()
	for _, album := range s.albums {
		if album.ID == albumID {
			album.ShareToken = resp.Token
		}
	}
	s.mu.Unlock()
	return resp.Token, nil
}

// RevokeShareLink 吊销相册的所有有效共享链接
func (s *Service) RevokeShareLink(ctx context.Context, albumID string) error {
	links, err := s.fetchShareLinks(ctx, albumID)
	if err != nil {
		return err
	}

	for _, link := range links {
		if !link.IsActive {
			continue
		}
		if err := s.client.Request(ctx, http.MethodDelete, api.EndpointAlbumShareLink(albumID, link.ID), nil, nil); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for _, album := range s.albums {
		if album.ID == albumID {
			album.ShareToken = ""
		}
	}
	s.mu.Unlock()
	return nil
}

// GetShared 通过共享 token 获取只读相册。无需认证。
// 404 与 410 分别映射为链接不存在 / 链接失效。
func (s *Service) GetShared(ctx context.Context, token string) (*SharedAlbum, error) {
	resp, err := s.client.Do(ctx, http.MethodGet, api.EndpointShare(token), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrShareNotFound
	case resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrShareExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return nil, api.NewError(api.KindRequestFailed, api.GenericErrorMessage)
	}

	var shared sharedAlbumResponse
	if err := json.NewDecoder(resp.Body).Decode(&shared); err != nil {
		return nil, api.WrapError(api.KindRequestFailed, api.GenericErrorMessage, err)
	}
	return mapSharedAlbum(&shared), nil
}

// fetchShareLinks 查询相册的共享链接列表
func (s *Service) fetchShareLinks(ctx context.Context, albumID string) ([]ShareLink, error) {
	var resp []shareLinkResponse
	if err := s.client.Request(ctx, http.MethodGet, api.EndpointAlbumShare(albumID), nil, &resp); err != nil {
		return nil, err
	}

	links := make([]ShareLink, 0, len(resp))
	for i := range resp {
		links = append(links, mapShareLink(&resp[i]))
	}
	return links, nil
}

// reconcile 用服务端记录覆盖（或追加）本地集合中的相册
func (s *Service) reconcile(album *Album) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.albums {
		if existing.ID == album.ID {
			s.albums[i] = album
			return
		}
	}
	s.albums = append(s.albums, album)
}

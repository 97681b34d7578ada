package api

import "fmt"

// 后端 REST 路径构建器。路径相对于配置的 base URL。

func EndpointRegister() string { return "/auth/register" }
func EndpointLogin() string    { return "/auth/login" }
func EndpointMe() string       { return "/auth/me" }

func EndpointAlbums() string { return "/albums/" }

func EndpointAlbum(id string) string {
	return fmt.Sprintf("/albums/%s", id)
}

func EndpointAlbumPhotos(id string) string {
	return fmt.Sprintf("/albums/%s/photos", id)
}

func EndpointAlbumShare(id string) string {
	return fmt.Sprintf("/albums/%s/share", id)
}

func EndpointAlbumShareLink(id, linkID string) string {
	return fmt.Sprintf("/albums/%s/share/%s", id, linkID)
}

func EndpointPresignedURL() string { return "/photos/presigned-url" }
func EndpointConfirm() string      { return "/photos/confirm" }

func EndpointPhotoDownload(id string) string {
	return fmt.Sprintf("/photos/%s/download", id)
}

func EndpointShare(token string) string {
	return fmt.Sprintf("/share/%s", token)
}

package albums

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anoixa/album-client/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService 搭一个伪造后端并返回指向它的 Service
func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(api.NewClient(server.URL, nil), 30)
}

// TestService_FetchAlbums 测试列表拉取替换本地集合
func TestService_FetchAlbums(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "name": "Holiday", "description": "Summer 2026", "created_at": "2026-07-01T10:00:00", "photo_count": 12},
			{"id": 2, "name": "Family", "photo_count": 3}
		]`))
	})
	svc := newTestService(t, mux)

	list, err := svc.FetchAlbums(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "Holiday", list[0].Name)
	assert.Equal(t, 12, list[0].PhotoCount)
	assert.Nil(t, list[0].Images, "list endpoint omits photos")
	assert.Equal(t, "2026-07-01", list[0].CreatedAt.Format("2006-01-02"))

	// 第二次拉取替换而非追加
	again, err := svc.FetchAlbums(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

// TestService_CreateAlbum 测试创建后追加到集合
func TestService_CreateAlbum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Trips", req["name"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 7, "name": "Trips", "description": "", "photo_count": 0}`))
	})
	svc := newTestService(t, mux)

	album, err := svc.CreateAlbum(context.Background(), "Trips", "")
	require.NoError(t, err)
	assert.Equal(t, "7", album.ID)
	assert.Len(t, svc.Albums(), 1)
}

// TestService_CreateAlbum_FailureKeepsCollection 测试失败不产生本地变更
func TestService_CreateAlbum_FailureKeepsCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "Album name already exists"}`))
	})
	svc := newTestService(t, mux)

	_, err := svc.CreateAlbum(context.Background(), "Trips", "")
	require.Error(t, err)
	assert.Equal(t, "Album name already exists", err.Error())
	assert.Empty(t, svc.Albums())
}

// TestService_UpdateAlbum 测试更新保留共享 token
func TestService_UpdateAlbum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "Holiday", "photo_count": 2}]`))
	})
	mux.HandleFunc("/albums/1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Holiday 2026", req["name"])
		assert.EqualValues(t, 5, req["cover_photo_id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "name": "Holiday 2026", "photo_count": 2}`))
	})
	svc := newTestService(t, mux)

	_, err := svc.FetchAlbums(context.Background())
	require.NoError(t, err)
	svc.mu.Lock()
	svc.albums[0].ShareToken = "tok-1"
	svc.mu.Unlock()

	album, err := svc.UpdateAlbum(context.Background(), "1", "Holiday 2026", nil, "5")
	require.NoError(t, err)
	assert.Equal(t, "Holiday 2026", album.Name)
	assert.Equal(t, "tok-1", album.ShareToken, "share token survives rename")
}

// TestService_UpdateAlbum_InvalidCover 测试非法封面引用被前置拒绝
func TestService_UpdateAlbum_InvalidCover(t *testing.T) {
	svc := NewService(api.NewClient("http://127.0.0.1:1", nil), 30)
	_, err := svc.UpdateAlbum(context.Background(), "1", "Name", nil, "not-a-number")
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindValidation))
}

// TestService_DeleteAlbum 测试删除后从集合移除
func TestService_DeleteAlbum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "A"}, {"id": 2, "name": "B"}]`))
	})
	mux.HandleFunc("/albums/1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newTestService(t, mux)

	_, err := svc.FetchAlbums(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAlbum(context.Background(), "1"))
	remaining := svc.Albums()
	require.Len(t, remaining, 1)
	assert.Equal(t, "2", remaining[0].ID)
}

// TestService_GetAlbum 测试详情加载与共享链接增强
func TestService_GetAlbum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 3, "name": "Pets", "photos": [
			{"id": 10, "title": "cat", "url": "https://cdn.example.com/10.jpg"},
			{"id": 11, "title": "dog", "url": "/photos/11/download"}
		]}`))
	})
	mux.HandleFunc("/albums/3/share", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "token": "old", "is_active": false},
			{"id": 2, "token": "current", "is_active": true}
		]`))
	})
	svc := newTestService(t, mux)

	album, err := svc.GetAlbum(context.Background(), "3")
	require.NoError(t, err)
	require.Len(t, album.Images, 2)
	assert.Equal(t, "cat", album.Images[0].Name)
	assert.Equal(t, 2, album.PhotoCount)
	assert.Equal(t, "current", album.ShareToken, "first active link wins")
}

// TestService_GetAlbum_ShareLookupFailureTolerated 测试共享链接查询失败不阻塞详情
func TestService_GetAlbum_ShareLookupFailureTolerated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 3, "name": "Pets"}`))
	})
	mux.HandleFunc("/albums/3/share", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	svc := newTestService(t, mux)

	album, err := svc.GetAlbum(context.Background(), "3")
	require.NoError(t, err)
	assert.Empty(t, album.ShareToken)
}

// TestService_DeletePhotos 测试批量移除与本地同步
func TestService_DeletePhotos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 3, "name": "Pets", "photos": [
			{"id": 10, "title": "cat"}, {"id": 11, "title": "dog"}, {"id": 12, "title": "fish"}
		]}`))
	})
	mux.HandleFunc("/albums/3/share", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/albums/3/photos", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		var req struct {
			PhotoIDs []int64 `json:"photo_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{10, 12}, req.PhotoIDs)
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newTestService(t, mux)

	_, err := svc.GetAlbum(context.Background(), "3")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePhotos(context.Background(), "3", []string{"10", "12"}))

	albums := svc.Albums()
	require.Len(t, albums, 1)
	require.Len(t, albums[0].Images, 1)
	assert.Equal(t, "11", albums[0].Images[0].ID)
	assert.Equal(t, 1, albums[0].PhotoCount)
}

// TestService_DeletePhotos_HeldSnapshot 测试移除照片不改写先前交出的快照
func TestService_DeletePhotos_HeldSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 3, "name": "Pets", "photos": [
			{"id": 10, "title": "cat"}, {"id": 11, "title": "dog"}, {"id": 12, "title": "fish"}
		]}`))
	})
	mux.HandleFunc("/albums/3/share", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/albums/3/photos", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newTestService(t, mux)

	snapshot, err := svc.GetAlbum(context.Background(), "3")
	require.NoError(t, err)
	require.Len(t, snapshot.Images, 3)

	require.NoError(t, svc.DeletePhotos(context.Background(), "3", []string{"10", "12"}))

	// 先取到的快照保持原样
	require.Len(t, snapshot.Images, 3)
	assert.Equal(t, "10", snapshot.Images[0].ID)
	assert.Equal(t, "cat", snapshot.Images[0].Name)
	assert.Equal(t, "11", snapshot.Images[1].ID)
	assert.Equal(t, "12", snapshot.Images[2].ID)

	// 集合本身已同步
	current := svc.Albums()
	require.Len(t, current, 1)
	require.Len(t, current[0].Images, 1)
	assert.Equal(t, "11", current[0].Images[0].ID)
}

// TestService_DeletePhotos_InvalidID 测试非法照片引用被前置拒绝
func TestService_DeletePhotos_InvalidID(t *testing.T) {
	svc := NewService(api.NewClient("http://127.0.0.1:1", nil), 30)
	err := svc.DeletePhotos(context.Background(), "3", []string{"abc"})
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindValidation))
}

// TestService_ShareLinks 测试创建与吊销共享链接
func TestService_ShareLinks(t *testing.T) {
	active := true
	mux := http.NewServeMux()
	mux.HandleFunc("/albums/5/share", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			var req struct {
				ExpiresInDays int `json:"expires_in_days"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 30, req.ExpiresInDays)
			w.Write([]byte(`{"id": 9, "token": "tok-9", "is_active": true}`))
		case http.MethodGet:
			if active {
				w.Write([]byte(`[{"id": 9, "token": "tok-9", "is_active": true}]`))
			} else {
				w.Write([]byte(`[]`))
			}
		}
	})
	mux.HandleFunc("/albums/5/share/9", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		active = false
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newTestService(t, mux)

	token, err := svc.CreateShareLink(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "tok-9", token)

	require.NoError(t, svc.RevokeShareLink(context.Background(), "5"))
	assert.False(t, active)
}

// TestService_GetShared 测试共享相册访问及 404/410 区分
func TestService_GetShared(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/share/good", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"album_name": "Holiday", "album_description": "Summer", "photos": [
			{"id": 10, "title": "beach", "url": "https://cdn.example.com/10.jpg"}
		]}`))
	})
	mux.HandleFunc("/share/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/share/revoked", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	svc := newTestService(t, mux)

	t.Run("ok", func(t *testing.T) {
		shared, err := svc.GetShared(context.Background(), "good")
		require.NoError(t, err)
		assert.Equal(t, "Holiday", shared.Name)
		require.Len(t, shared.Images, 1)
		assert.Equal(t, "beach", shared.Images[0].Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.GetShared(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrShareNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := svc.GetShared(context.Background(), "revoked")
		assert.ErrorIs(t, err, ErrShareExpired)
	})
}

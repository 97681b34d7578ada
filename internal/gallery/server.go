package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	_ "image/gif"
	_ "image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/anoixa/album-client/api"
	"github.com/anoixa/album-client/cache"
	"github.com/anoixa/album-client/internal/albums"
	"github.com/anoixa/album-client/internal/images"
	"github.com/anoixa/album-client/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nfnt/resize"
)

// Server 本地只读画廊。
// 在回环地址上渲染相册网格，图片经认证加载器代理，不要求浏览器持有 token。
type Server struct {
	albums  *albums.Service
	session *session.Service
	client  *api.Client
	creds   api.CredentialProvider
	cache   *cache.Factory
	ttl     time.Duration
}

// NewServer 创建画廊服务
func NewServer(albumSvc *albums.Service, sessionSvc *session.Service, client *api.Client, creds api.CredentialProvider, cacheFactory *cache.Factory, ttl time.Duration) *Server {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Server{
		albums:  albumSvc,
		session: sessionSvc,
		client:  client,
		creds:   creds,
		cache:   cacheFactory,
		ttl:     ttl,
	}
}

// setupRouter 装配 gin 路由
func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		AllowMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.SetTrustedProxies(nil)

	router.SetHTMLTemplate(template.Must(template.New("").Parse(pageTemplates)))

	router.GET("/", s.handleIndex)
	router.GET("/albums/:id", s.handleAlbum)
	router.GET("/shared/:token", s.handleShared)
	router.GET("/img", s.handleImage)
	router.GET("/thumb", s.handleThumbnail)

	return router
}

// Run 启动画廊服务器，阻塞直到 ctx 取消
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Gallery] Listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// handleIndex 相册列表页。受保护视图，进入时清除受邀模式。
func (s *Server) handleIndex(c *gin.Context) {
	user, err := s.session.RequireAuthenticated()
	if err != nil {
		c.HTML(http.StatusUnauthorized, "error", gin.H{"Message": err.Error()})
		return
	}

	list, err := s.albums.FetchAlbums(c.Request.Context())
	if err != nil {
		c.HTML(http.StatusBadGateway, "error", gin.H{"Message": err.Error()})
		return
	}

	c.HTML(http.StatusOK, "index", gin.H{
		"Username": user.Username,
		"Albums":   list,
	})
}

// handleAlbum 相册详情页
func (s *Server) handleAlbum(c *gin.Context) {
	if _, err := s.session.RequireAuthenticated(); err != nil {
		c.HTML(http.StatusUnauthorized, "error", gin.H{"Message": err.Error()})
		return
	}

	album, err := s.albums.GetAlbum(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.HTML(http.StatusBadGateway, "error", gin.H{"Message": err.Error()})
		return
	}

	c.HTML(http.StatusOK, "album", gin.H{"Album": album})
}

// handleShared 共享相册页。无需认证。
func (s *Server) handleShared(c *gin.Context) {
	token := c.Param("token")

	cacheKey := cache.SharedAlbum.Build(token)
	if s.cache != nil {
		var cached albums.SharedAlbum
		if err := s.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Name != "" {
			c.HTML(http.StatusOK, "shared", gin.H{"Album": &cached, "Token": token})
			return
		}
	}

	shared, err := s.albums.GetShared(c.Request.Context(), token)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, albums.ErrShareNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, albums.ErrShareExpired) {
			status = http.StatusGone
		}
		c.HTML(status, "error", gin.H{"Message": err.Error()})
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(c.Request.Context(), cacheKey, shared, s.ttl); err != nil {
			log.Printf("[Gallery] Failed to cache shared album: %v", err)
		}
	}
	c.HTML(http.StatusOK, "shared", gin.H{"Album": shared, "Token": token})
}

// handleImage 图片代理。受保护引用经认证加载器取回，其余重定向直连。
func (s *Server) handleImage(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.String(http.StatusBadRequest, "missing ref")
		return
	}

	if !images.IsAuthRequired(ref) {
		c.Redirect(http.StatusFound, s.client.ResolveURL(ref))
		return
	}

	data, contentType, err := s.fetchProtected(c.Request.Context(), ref)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, images.ErrUnauthenticated) {
			status = http.StatusUnauthorized
		}
		c.String(status, err.Error())
		return
	}

	c.Data(http.StatusOK, contentType, data)
}

// handleThumbnail 缩略图代理。仅对可解码的 jpeg/png 缩放，其余原样返回。
func (s *Server) handleThumbnail(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.String(http.StatusBadRequest, "missing ref")
		return
	}

	width, err := strconv.Atoi(c.DefaultQuery("w", "320"))
	if err != nil || width <= 0 || width > 2048 {
		width = 320
	}

	if !images.IsAuthRequired(ref) {
		c.Redirect(http.StatusFound, s.client.ResolveURL(ref))
		return
	}

	cacheKey := cache.Thumbnail.Build(ref, strconv.Itoa(width))
	if s.cache != nil {
		var cached []byte
		if err := s.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && len(cached) > 0 {
			c.Data(http.StatusOK, "image/jpeg", cached)
			return
		}
	}

	data, contentType, err := s.fetchProtected(c.Request.Context(), ref)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, images.ErrUnauthenticated) {
			status = http.StatusUnauthorized
		}
		c.String(status, err.Error())
		return
	}

	thumb, ok := makeThumbnail(data, width)
	if !ok {
		// webp/heic 等无法用标准库解码，退回原图
		c.Data(http.StatusOK, contentType, data)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(c.Request.Context(), cacheKey, thumb, s.ttl); err != nil {
			log.Printf("[Gallery] Failed to cache thumbnail: %v", err)
		}
	}
	c.Data(http.StatusOK, "image/jpeg", thumb)
}

// fetchProtected 经一次性加载器取回受保护图片字节
func (s *Server) fetchProtected(ctx context.Context, ref string) ([]byte, string, error) {
	loader := images.NewLoader(s.client, s.creds, s.cache, s.ttl)
	defer loader.Close()

	blob, err := loader.Load(ctx, ref)
	if err != nil {
		return nil, "", err
	}

	reader, err := blob.Open()
	if err != nil {
		return nil, "", err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, "", fmt.Errorf("failed to read blob: %w", err)
	}
	return buf.Bytes(), blob.ContentType, nil
}

// makeThumbnail 将 jpeg/png 缩放到目标宽度并重编码为 jpeg
func makeThumbnail(data []byte, width int) ([]byte, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}

	if img.Bounds().Dx() > width {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 82}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

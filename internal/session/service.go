package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/anoixa/album-client/api"
	"github.com/anoixa/album-client/internal/state"
	"github.com/anoixa/album-client/utils"
	"github.com/golang-jwt/jwt/v5"
)

// User 当前登录用户
type User struct {
	ID       string
	Username string
	Email    string
}

// Session 会话快照。
// 不变式：IsAuthenticated ⇒ User != nil 且 !IsInvitedMode；
// IsInvitedMode ⇒ User == nil 且无 token。
type Session struct {
	User            *User
	IsAuthenticated bool
	IsInvitedMode   bool
	InvitedAlbum    string
}

// userResponse /auth/me 响应
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// loginRequest /auth/login 请求体
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse /auth/login 响应
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// registerRequest /auth/register 请求体
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service 会话存储。
// 认证 / 受邀 / 匿名 三种状态互斥，由本结构统一维护。
type Service struct {
	client *api.Client
	state  *state.Store

	mu           sync.RWMutex
	user         *User
	invited      bool
	invitedAlbum string
}

// NewService 创建会话存储
func NewService(client *api.Client, store *state.Store) *Service {
	return &Service{client: client, state: store}
}

// Restore 启动时恢复会话。
// 有 token 则向 /auth/me 校验；失败丢弃 token，若持久化了受邀标记则回到受邀模式。
// 返回后 认证/受邀/匿名 恰有其一成立。
func (s *Service) Restore(ctx context.Context) error {
	token := s.state.Token()

	if token != "" && tokenExpiredLocally(token) {
		// 本地即可判定过期，省掉一次网络往返
		log.Println("[Session] Stored token is expired, discarding")
		s.state.ClearToken()
		token = ""
	}

	if token != "" {
		var resp userResponse
		err := s.client.Request(ctx, http.MethodGet, api.EndpointMe(), nil, &resp)
		if err == nil {
			s.mu.Lock()
			s.user = mapUser(&resp)
			s.invited = false
			s.invitedAlbum = ""
			s.mu.Unlock()
			if s.state.InvitedMode() {
				s.state.ClearInvitedMode()
			}
			return nil
		}
		log.Printf("[Session] Failed to restore user: %v", err)
		s.state.ClearToken()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	if s.state.InvitedMode() {
		s.invited = true
		s.invitedAlbum = s.state.InvitedAlbum()
	} else {
		s.invited = false
		s.invitedAlbum = ""
	}
	return nil
}

// Login 用邮箱和密码换取 token，持久化后拉取用户信息并清除受邀模式
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	var tokenResp loginResponse
	err := s.client.Request(ctx, http.MethodPost, api.EndpointLogin(), loginRequest{Email: email, Password: password}, &tokenResp)
	if err != nil {
		if api.IsKind(err, api.KindRequestFailed) || api.IsKind(err, api.KindAuth) {
			return nil, api.NewError(api.KindAuth, "Invalid email or password.")
		}
		return nil, err
	}

	if err := s.state.SetToken(tokenResp.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	var userResp userResponse
	if err := s.client.Request(ctx, http.MethodGet, api.EndpointMe(), nil, &userResp); err != nil {
		s.state.ClearToken()
		return nil, err
	}

	s.mu.Lock()
	s.user = mapUser(&userResp)
	s.invited = false
	s.invitedAlbum = ""
	s.mu.Unlock()

	s.state.ClearInvitedMode()
	log.Printf("[Session] Logged in as %s", utils.SanitizeLogUsername(userResp.Username))
	return s.Current().User, nil
}

// Register 注册账号。注册成功后不自动登录。
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	req := registerRequest{Email: email, Username: username, Password: password}
	return s.client.Request(ctx, http.MethodPost, api.EndpointRegister(), req, nil)
}

// Logout 清除用户、受邀标记和 token。
// 后端 token 短时效且无吊销端点，不发网络请求。
func (s *Service) Logout() {
	s.mu.Lock()
	s.user = nil
	s.invited = false
	s.invitedAlbum = ""
	s.mu.Unlock()

	if err := s.state.ClearSession(); err != nil {
		log.Printf("[Session] Failed to clear persisted session: %v", err)
	}
}

// EnterInvitedMode 进入受邀模式（未认证访问共享链接时），丢弃任何 token
func (s *Service) EnterInvitedMode(albumRef string) {
	s.mu.Lock()
	s.user = nil
	s.invited = true
	s.invitedAlbum = albumRef
	s.mu.Unlock()

	if err := s.state.SetInvitedMode(albumRef); err != nil {
		log.Printf("[Session] Failed to persist invited mode: %v", err)
	}
}

// ExitInvitedMode 退出受邀模式
func (s *Service) ExitInvitedMode() {
	s.mu.Lock()
	s.invited = false
	s.invitedAlbum = ""
	s.mu.Unlock()

	if err := s.state.ClearInvitedMode(); err != nil {
		log.Printf("[Session] Failed to clear invited mode: %v", err)
	}
}

// Current 返回会话快照
func (s *Service) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user *User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Session{
		User:            user,
		IsAuthenticated: user != nil && !s.invited,
		IsInvitedMode:   s.invited,
		InvitedAlbum:    s.invitedAlbum,
	}
}

// RequireAuthenticated 受保护入口守卫。
// 受保护视图假定完整认证，进入时强制清除受邀模式。
func (s *Service) RequireAuthenticated() (*User, error) {
	if s.Current().IsInvitedMode {
		s.ExitInvitedMode()
	}
	sess := s.Current()
	if !sess.IsAuthenticated {
		return nil, api.NewError(api.KindAuth, "Please sign in to continue.")
	}
	return sess.User, nil
}

// TokenExpiry 返回持久化 token 的过期时间（仅本地解析，不校验签名）
func (s *Service) TokenExpiry() (time.Time, bool) {
	token := s.state.Token()
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

// tokenExpiry 不验证签名地解析 exp 声明
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// tokenExpiredLocally 判断 token 是否已过期；无法解析时交给服务端判定
func tokenExpiredLocally(token string) bool {
	exp, ok := tokenExpiry(token)
	if !ok {
		return false
	}
	return exp.Before(time.Now())
}

// mapUser 后端字段映射为内部结构
func mapUser(resp *userResponse) *User {
	return &User{
		ID:       strconv.FormatInt(resp.ID, 10),
		Username: resp.Username,
		Email:    resp.Email,
	}
}

package web

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"paperarena/ai"
	"paperarena/metrics"
	"paperarena/portfolio"
)

// Session 会话信息：每个会话独立持有一套模拟账本和 AI 凭证
type Session struct {
	SessionID string
	Ledger    *portfolio.Ledger
	CreatedAt time.Time
	ExpiresAt time.Time

	mu      sync.RWMutex
	aiCreds *ai.Credentials
}

// SetAICredentials 保存会话级 AI 凭证
func (s *Session) SetAICredentials(creds *ai.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiCreds = creds
}

// AICredentials 获取会话级 AI 凭证
func (s *Session) AICredentials() *ai.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aiCreds
}

// SessionManager 会话管理器
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	// 会话过期时间（默认24小时）
	sessionTimeout time.Duration

	startingCash float64
	prices       portfolio.PriceSource
	stopCh       chan struct{}
}

// NewSessionManager 创建会话管理器
func NewSessionManager(startingCash float64, timeout time.Duration, prices portfolio.PriceSource) *SessionManager {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	sm := &SessionManager{
		sessions:       make(map[string]*Session),
		sessionTimeout: timeout,
		startingCash:   startingCash,
		prices:         prices,
		stopCh:         make(chan struct{}),
	}

	// 启动清理过期会话的协程
	go sm.cleanupExpiredSessions()

	return sm
}

// Stop 停止后台清理
func (sm *SessionManager) Stop() {
	close(sm.stopCh)
}

// cleanupExpiredSessions 清理过期会话
func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopCh:
			return
		case <-ticker.C:
			sm.mu.Lock()
			now := time.Now()
			for sessionID, session := range sm.sessions {
				if now.After(session.ExpiresAt) {
					delete(sm.sessions, sessionID)
				}
			}
			count := len(sm.sessions)
			sm.mu.Unlock()
			metrics.GetPrometheusMetrics().SetActiveSessions(count)
		}
	}
}

// generateSessionID 生成会话ID
func (sm *SessionManager) generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 使用无填充的 URL 安全编码，避免 Cookie 中的 '=' 被转义导致会话查找失败
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateSession 创建会话并初始化独立账本
func (sm *SessionManager) CreateSession() (*Session, error) {
	sessionID, err := sm.generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("生成会话ID失败: %v", err)
	}

	now := time.Now()
	session := &Session{
		SessionID: sessionID,
		Ledger:    portfolio.NewLedger(sm.startingCash, sm.prices),
		CreatedAt: now,
		ExpiresAt: now.Add(sm.sessionTimeout),
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = session
	count := len(sm.sessions)
	sm.mu.Unlock()
	metrics.GetPrometheusMetrics().SetActiveSessions(count)

	return session, nil
}

// GetSession 获取会话
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, false
	}

	// 检查是否过期
	if time.Now().After(session.ExpiresAt) {
		return nil, false
	}

	return session, true
}

// SessionCount 当前会话数
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// GetOrCreateSession 从请求中取出会话，没有则创建并写回 Cookie
func (sm *SessionManager) GetOrCreateSession(c *gin.Context) (*Session, error) {
	if cookie, err := c.Request.Cookie("session_id"); err == nil {
		if session, ok := sm.GetSession(cookie.Value); ok {
			return session, nil
		}
	}

	session, err := sm.CreateSession()
	if err != nil {
		return nil, err
	}
	sm.setSessionCookie(c.Writer, session.SessionID)
	return session, nil
}

// setSessionCookie 设置会话Cookie
func (sm *SessionManager) setSessionCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.sessionTimeout.Seconds()),
	}
	http.SetCookie(w, cookie)
}

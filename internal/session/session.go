// Package session はセッションの解決とリクエスト単位のプロファイル参照を提供する。
package session

import "time"

// AnonymousUsername は未認証リクエストの監査上のユーザー名。
const AnonymousUsername = "anonymous"

// Profile は監査に使用するユーザー情報。
type Profile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Anonymous は未認証ユーザーのプロファイルを返す。
func Anonymous() *Profile {
	return &Profile{Username: AnonymousUsername}
}

// Session はキャッシュに保存されるセッション状態。
type Session struct {
	ID              string    `json:"id"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	UserAuthID      int       `json:"userAuthId,omitempty"`
	UserAuthName    string    `json:"userAuthName,omitempty"`
	Email           string    `json:"email,omitempty"`
	DisplayName     string    `json:"displayName,omitempty"`
	UserProfile     *Profile  `json:"userProfile,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	LastModified    time.Time `json:"lastModified"`
}

// ToProfile はセッションから監査用プロファイルを導出する。
// 未認証の場合はAnonymousを返す。
func (s *Session) ToProfile() *Profile {
	if s == nil || !s.IsAuthenticated {
		return Anonymous()
	}

	p := &Profile{
		Username: s.UserAuthName,
		Email:    s.Email,
	}
	if s.UserProfile != nil {
		p.ID = s.UserProfile.ID
		p.IsAdmin = s.UserProfile.IsAdmin
	}
	return p
}

func (s *Session) clone() *Session {
	c := *s
	if s.UserProfile != nil {
		p := *s.UserProfile
		c.UserProfile = &p
	}
	return &c
}

// Package memstore holds in-memory store implementations used by tests as
// stand-ins for the Postgres-backed stores.
package memstore

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	otpmodel "edulens-auth/models/otp"
	"edulens-auth/models/staff"
	"edulens-auth/models/user"
	"edulens-auth/services/token"
)

// OTPStore is an in-memory otp.Store.
type OTPStore struct {
	mu     sync.Mutex
	nextID uint
	codes  []otpmodel.OtpCode
}

func NewOTPStore() *OTPStore {
	return &OTPStore{}
}

func (s *OTPStore) Create(rec *otpmodel.OtpCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.codes = append(s.codes, *rec)
	return nil
}

func (s *OTPStore) FindLatestValid(phone, code string, now time.Time) (*otpmodel.OtpCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *otpmodel.OtpCode
	for i := range s.codes {
		rec := &s.codes[i]
		if rec.Phone != phone || rec.Code != code || rec.IsUsed || !rec.ExpiresAt.After(now) {
			continue
		}
		// Newest wins; ties resolve to the later insertion.
		if found == nil || !rec.CreatedAt.Before(found.CreatedAt) {
			found = rec
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (s *OTPStore) MarkUsed(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		if s.codes[i].ID == id {
			s.codes[i].IsUsed = true
			return nil
		}
	}
	return errors.New("not found")
}

func (s *OTPStore) CountCreatedSince(phone string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for i := range s.codes {
		if s.codes[i].Phone == phone && !s.codes[i].CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *OTPStore) DeleteCreatedBefore(phone string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.codes[:0]
	for _, rec := range s.codes {
		if rec.Phone == phone && rec.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	s.codes = kept
	return nil
}

// All returns a snapshot of every stored code, for test assertions.
func (s *OTPStore) All() []otpmodel.OtpCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]otpmodel.OtpCode, len(s.codes))
	copy(out, s.codes)
	return out
}

// LatestCode returns the newest unused code for a phone, mirroring what a
// developer would read from the log in dev mode.
func (s *OTPStore) LatestCode(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *otpmodel.OtpCode
	for i := range s.codes {
		rec := &s.codes[i]
		if rec.Phone != phone || rec.IsUsed {
			continue
		}
		if latest == nil || !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Code
}

// SessionStore is an in-memory token.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]token.SessionRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]token.SessionRecord)}
}

func (s *SessionStore) Create(userID, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[refreshToken] = token.SessionRecord{
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	return nil
}

func (s *SessionStore) Find(refreshToken string) (*token.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[refreshToken]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *SessionStore) Rotate(oldToken, userID, newToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[oldToken]; !ok {
		return errors.New("session not found")
	}
	delete(s.sessions, oldToken)
	s.sessions[newToken] = token.SessionRecord{
		UserID:       userID,
		RefreshToken: newToken,
		ExpiresAt:    expiresAt,
	}
	return nil
}

func (s *SessionStore) Delete(refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, refreshToken)
	return nil
}

// Expire backdates a session's expiry, for tests that need a stored-but-
// expired refresh token.
func (s *SessionStore) Expire(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[refreshToken]; ok {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
		s.sessions[refreshToken] = rec
	}
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// UserStore is an in-memory auth.UserStore.
type UserStore struct {
	mu      sync.Mutex
	byPhone map[string]*user.User
	byID    map[string]*user.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		byPhone: make(map[string]*user.User),
		byID:    make(map[string]*user.User),
	}
}

func (s *UserStore) UpsertByPhone(phone string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byPhone[phone]; ok {
		u.IsVerified = true
		u.UpdatedAt = time.Now()
		cp := *u
		return &cp, nil
	}
	now := time.Now()
	u := &user.User{
		ID:         uuid.NewString(),
		Phone:      phone,
		IsVerified: true,
		Role:       user.RoleParent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byPhone[phone] = u
	s.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *UserStore) FindByID(id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// StaffStore is an in-memory auth.StaffStore.
type StaffStore struct {
	mu      sync.Mutex
	byID    map[string]*staff.StaffUser
	byEmail map[string]string
}

func NewStaffStore() *StaffStore {
	return &StaffStore{
		byID:    make(map[string]*staff.StaffUser),
		byEmail: make(map[string]string),
	}
}

// Add seeds a staff account, assigning an id when absent.
func (s *StaffStore) Add(u *staff.StaffUser) *staff.StaffUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	return u
}

func (s *StaffStore) FindActiveByEmail(email string) (*staff.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := s.byID[id]
	if !u.IsActive {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *StaffStore) FindByID(id string) (*staff.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *StaffStore) UpdateLastLogin(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return errors.New("not found")
	}
	u.LastLoginAt = &at
	return nil
}

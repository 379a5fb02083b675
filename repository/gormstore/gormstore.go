package gormstore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	otpmodel "edulens-auth/models/otp"
	"edulens-auth/models/session"
	"edulens-auth/models/staff"
	"edulens-auth/models/user"
	"edulens-auth/services/token"
)

// OTPStore is the Postgres-backed OTP store.
type OTPStore struct {
	db *gorm.DB
}

func NewOTPStore(db *gorm.DB) *OTPStore {
	return &OTPStore{db: db}
}

func (s *OTPStore) Create(rec *otpmodel.OtpCode) error {
	return s.db.Create(rec).Error
}

func (s *OTPStore) FindLatestValid(phone, code string, now time.Time) (*otpmodel.OtpCode, error) {
	var rec otpmodel.OtpCode
	err := s.db.
		Where("phone = ? AND code = ? AND is_used = false AND expires_at > ?", phone, code, now).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *OTPStore) MarkUsed(id uint) error {
	return s.db.Model(&otpmodel.OtpCode{}).Where("id = ?", id).Update("is_used", true).Error
}

func (s *OTPStore) CountCreatedSince(phone string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&otpmodel.OtpCode{}).
		Where("phone = ? AND created_at >= ?", phone, since).
		Count(&count).Error
	return count, err
}

func (s *OTPStore) DeleteCreatedBefore(phone string, cutoff time.Time) error {
	return s.db.Where("phone = ? AND created_at < ?", phone, cutoff).
		Delete(&otpmodel.OtpCode{}).Error
}

// SessionStore persists parent refresh-token sessions.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(userID, refreshToken string, expiresAt time.Time) error {
	return s.db.Create(&session.Session{
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}).Error
}

func (s *SessionStore) Find(refreshToken string) (*token.SessionRecord, error) {
	var rec session.Session
	err := s.db.Where("refresh_token = ?", refreshToken).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token.SessionRecord{
		UserID:       rec.UserID,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

// Rotate replaces the old session row with the new one in a single
// transaction. A concurrent rotation of the same token loses the race and
// gets an error instead of a second live session.
func (s *SessionStore) Rotate(oldToken, userID, newToken string, expiresAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("refresh_token = ?", oldToken).Delete(&session.Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&session.Session{
			UserID:       userID,
			RefreshToken: newToken,
			ExpiresAt:    expiresAt,
		}).Error
	})
}

func (s *SessionStore) Delete(refreshToken string) error {
	return s.db.Where("refresh_token = ?", refreshToken).Delete(&session.Session{}).Error
}

// StaffSessionStore is the staff twin of SessionStore over the disjoint
// staff_sessions table.
type StaffSessionStore struct {
	db *gorm.DB
}

func NewStaffSessionStore(db *gorm.DB) *StaffSessionStore {
	return &StaffSessionStore{db: db}
}

func (s *StaffSessionStore) Create(staffID, refreshToken string, expiresAt time.Time) error {
	return s.db.Create(&session.StaffSession{
		StaffUserID:  staffID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}).Error
}

func (s *StaffSessionStore) Find(refreshToken string) (*token.SessionRecord, error) {
	var rec session.StaffSession
	err := s.db.Where("refresh_token = ?", refreshToken).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token.SessionRecord{
		UserID:       rec.StaffUserID,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (s *StaffSessionStore) Rotate(oldToken, staffID, newToken string, expiresAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("refresh_token = ?", oldToken).Delete(&session.StaffSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&session.StaffSession{
			StaffUserID:  staffID,
			RefreshToken: newToken,
			ExpiresAt:    expiresAt,
		}).Error
	})
}

func (s *StaffSessionStore) Delete(refreshToken string) error {
	return s.db.Where("refresh_token = ?", refreshToken).Delete(&session.StaffSession{}).Error
}

// UserStore persists parent accounts.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// UpsertByPhone creates a verified parent on first sight of the phone and
// refreshes the verification flag on every later sight. Concurrent verifies
// for the same phone land on the unique phone constraint, so the insert
// resolves conflicts in the database rather than racing a find-then-create.
func (s *UserStore) UpsertByPhone(phone string) (*user.User, error) {
	candidate := user.User{
		ID:         uuid.NewString(),
		Phone:      phone,
		IsVerified: true,
		Role:       user.RoleParent,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_verified": true}),
	}).Create(&candidate).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the caller gets the canonical row (the original id on
	// conflict, not the discarded candidate's).
	var u user.User
	if err := s.db.Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) FindByID(id string) (*user.User, error) {
	var u user.User
	err := s.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// StaffStore persists staff accounts.
type StaffStore struct {
	db *gorm.DB
}

func NewStaffStore(db *gorm.DB) *StaffStore {
	return &StaffStore{db: db}
}

func (s *StaffStore) FindActiveByEmail(email string) (*staff.StaffUser, error) {
	var u staff.StaffUser
	err := s.db.Where("email = ? AND is_active = true", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *StaffStore) FindByID(id string) (*staff.StaffUser, error) {
	var u staff.StaffUser
	err := s.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *StaffStore) UpdateLastLogin(id string, at time.Time) error {
	return s.db.Model(&staff.StaffUser{}).Where("id = ?", id).
		Update("last_login_at", at).Error
}

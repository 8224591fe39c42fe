package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/security"
	"github.com/Leganyst/staff-booking/internal/telemetry"
)

// TokenPair: результат входа и обновления.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Staff            *model.Staff
}

// ClientMeta: откуда пришёл запрос, сохраняется в refresh-сессии.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// Principal: аутентифицированный сотрудник из access-токена.
type Principal struct {
	UID     uuid.UUID
	StaffID string
	Role    model.StaffRole
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == model.StaffRoleAdmin
}

// AuthService выдаёт и ротирует токены. Refresh-токен одноразовый:
// повторное предъявление отозванного токена считается инцидентом.
type AuthService struct {
	db       *gorm.DB
	staff    repository.StaffRepository
	sessions repository.SessionRepository
	events   repository.EventRepository
	guard    *PinGuard
	tokens   *security.TokenManager
	hasher   Credentials
	now      Clock
}

func NewAuthService(
	db *gorm.DB,
	staff repository.StaffRepository,
	sessions repository.SessionRepository,
	events repository.EventRepository,
	guard *PinGuard,
	tokens *security.TokenManager,
	hasher Credentials,
	now Clock,
) *AuthService {
	if now == nil {
		now = SystemClock
	}
	return &AuthService{
		db:       db,
		staff:    staff,
		sessions: sessions,
		events:   events,
		guard:    guard,
		tokens:   tokens,
		hasher:   hasher,
		now:      now,
	}
}

// Login: вход по табельному номеру и PIN.
func (s *AuthService) Login(ctx context.Context, staffID, pin string, meta ClientMeta) (pair *TokenPair, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.login")
	defer func() { finish(span, "auth.login", logrus.Fields{"staff_id": staffID}, err) }()

	now := s.now()

	staff, err := s.staff.GetByStaffID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.guard.CheckLoginAllowed(staff); err != nil {
		return nil, err
	}

	ok, err := s.guard.Verify(ctx, staff, pin, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.staff.WithTx(tx).UpdateFields(ctx, staff.UID, map[string]any{"last_login_at": now}); err != nil {
			return err
		}
		staff.LastLoginAt = &now

		pair, err = s.issuePair(ctx, tx, staff, now, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh меняет refresh-токен на новую пару. Старая сессия отзывается.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (pair *TokenPair, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.refresh")
	fields := logrus.Fields{}
	defer func() { finish(span, "auth.refresh", fields, err) }()

	now := s.now()

	claims, err := s.tokens.ParseRefresh(refreshToken, now)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	fields["staff_uid"] = uid
	fields["session_id"] = sessionID

	var reuse bool
	var inactive bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)

		sess, err := sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				reuse = true
				return nil
			}
			return err
		}
		if sess.StaffUID != uid || sess.RevokedAt != nil || !s.hasher.Verify(refreshToken, sess.TokenHash) {
			reuse = true
			return nil
		}
		if !now.Before(sess.ExpiresAt) {
			return ErrInvalidRefreshToken
		}

		staff, err := s.staff.WithTx(tx).GetByUID(ctx, uid)
		if err != nil {
			return err
		}
		if err := sessions.Revoke(ctx, sess.ID, now); err != nil {
			return err
		}
		if staff.Status != model.StaffStatusActive {
			inactive = true
			return nil
		}

		pair, err = s.issuePair(ctx, tx, staff, now, meta)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if inactive {
		return nil, ErrAccountInactive
	}
	if reuse {
		if err := s.contain(ctx, uid, sessionID, now); err != nil {
			return nil, err
		}
		return nil, ErrRefreshReuse
	}
	return pair, nil
}

// contain: реакция на повторное использование refresh-токена: все сессии
// сотрудника отзываются, аккаунт приостанавливается до решения администратора.
func (s *AuthService) contain(ctx context.Context, uid, sessionID uuid.UUID, now time.Time) error {
	var revoked int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff := s.staff.WithTx(tx)
		current, err := staff.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}

		revoked, err = s.sessions.WithTx(tx).RevokeAllForStaff(ctx, uid, now)
		if err != nil {
			return err
		}
		if current.Status == model.StaffStatusActive {
			if err := staff.UpdateFields(ctx, uid, map[string]any{"status": model.StaffStatusSuspended}); err != nil {
				return err
			}
		}
		return s.events.WithTx(tx).Record(ctx, model.EventTypeRefreshReuseDetected, repository.EventRef{StaffUID: uid},
			map[string]any{"session_id": sessionID, "revoked_sessions": revoked})
	})
	if errors.Is(err, repository.ErrNotFound) {
		// субъект неизвестен: отзывать нечего
		return ErrInvalidRefreshToken
	}
	return err
}

// Logout отзывает сессию refresh-токена. Повторный вызов ничего не делает.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	now := s.now()

	claims, err := s.tokens.ParseRefresh(refreshToken, now)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ErrInvalidRefreshToken
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		sess, err := sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if sess.RevokedAt != nil || sess.StaffUID.String() != claims.Subject {
			return nil
		}
		if !s.hasher.Verify(refreshToken, sess.TokenHash) {
			return nil
		}
		return sessions.Revoke(ctx, sess.ID, now)
	})
}

// Authenticate проверяет access-токен. Статус берётся из БД, а не из токена:
// приостановленный сотрудник теряет доступ сразу.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.ParseAccess(accessToken, s.now())
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Message: "Invalid access token"}
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Message: "Invalid access token"}
	}

	staff, err := s.staff.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: KindUnauthorized, Message: "Invalid access token"}
		}
		return nil, err
	}
	if staff.Status != model.StaffStatusActive {
		return nil, &Error{Kind: KindUnauthorized, Message: ErrAccountInactive.Message}
	}
	return &Principal{UID: staff.UID, StaffID: staff.StaffID, Role: staff.Role}, nil
}

func (s *AuthService) issuePair(ctx context.Context, tx *gorm.DB, staff *model.Staff, now time.Time, meta ClientMeta) (*TokenPair, error) {
	sessionID := uuid.New()

	refresh, refreshExp, err := s.tokens.IssueRefresh(staff.UID, staff.StaffID, sessionID, now)
	if err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, err
	}

	sess := &model.RefreshSession{
		ID:        sessionID,
		StaffUID:  staff.UID,
		TokenHash: digest,
		ExpiresAt: refreshExp,
		UserAgent: optionalString(meta.UserAgent),
		IPAddress: optionalString(meta.IPAddress),
	}
	if err := s.sessions.WithTx(tx).Create(ctx, sess); err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccess(staff.UID, staff.StaffID, string(staff.Role), string(staff.Status), now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.tokens.AccessTTL()),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Staff:            staff,
	}, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

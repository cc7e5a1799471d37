package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/utils"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service authenticates users and resolves token subjects into actors.
type Service struct {
	db     *gorm.DB
	signer *utils.Signer
}

func NewService(db *gorm.DB, signer *utils.Signer) *Service {
	return &Service{db: db, signer: signer}
}

func (s *Service) Signer() *utils.Signer {
	return s.signer
}

// Actor loads an active user with everything the access policy needs.
func (s *Service) Actor(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles.Permissions").
		Preload("Tenant").
		Where("deleted = ?", false).
		First(&user, userID).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &user, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	return s.Actor(ctx, userID)
}

// Login checks the password and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND deleted = ?", strings.TrimSpace(email), false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if user.Password == "" || !utils.CheckPasswordHash(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.signer.Generate(user.ID)
	if err != nil {
		return "", nil, err
	}

	actor, err := s.Actor(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, actor, nil
}

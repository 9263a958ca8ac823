package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
	"github.com/healthline/booking/internal/media"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrWeakPassword  = errors.New("password too short")
	ErrInvalidFees   = errors.New("invalid fees")
)

// Repository is the user and doctor storage accounts work against.
type Repository interface {
	appointment.UserRepository
	appointment.DoctorRepository
}

type Registration struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type Credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Image is an optional uploaded file.
type Image struct {
	Name   string
	Reader io.Reader
}

type ProfileInput struct {
	Name    string               `validate:"required"`
	Phone   string               `validate:"required"`
	Address *appointment.Address `validate:"required"`
	DOB     string               `validate:"required"`
	Gender  string               `validate:"required"`
	Image   *Image               `validate:"-"`
}

type DoctorInput struct {
	Name       string               `validate:"required"`
	Email      string               `validate:"required,email"`
	Password   string               `validate:"required,min=8"`
	Speciality string               `validate:"required"`
	Degree     string               `validate:"required"`
	Experience string               `validate:"required"`
	About      string               `validate:"required"`
	Fees       float64              `validate:"gt=0"`
	Address    *appointment.Address `validate:"required"`
	Image      *Image               `validate:"-"`
}

type DoctorProfileInput struct {
	Fees       float64 `validate:"gt=0"`
	Address    appointment.Address
	Available  bool
	About      string
	Experience string
}

type Service struct {
	repo     Repository
	issuer   *auth.Issuer
	uploader media.Uploader
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, issuer *auth.Issuer, uploader media.Uploader, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		issuer:   issuer,
		uploader: uploader,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// check validates in and maps the first failure onto an account error.
// Missing fields win over format errors.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: %s", ErrMissingFields, fe.Field())
		}
	}
	for _, fe := range verrs {
		switch {
		case fe.Tag() == "email":
			return ErrInvalidEmail
		case fe.Tag() == "min" && fe.Field() == "Password":
			return ErrWeakPassword
		case fe.Field() == "Fees":
			return ErrInvalidFees
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingFields, verrs[0].Field())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a patient account and returns a session token.
// Nothing is written unless every field passes validation.
func (s *Service) RegisterUser(ctx context.Context, in Registration) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return "", err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", err
	}

	u := &appointment.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", u.ID).Msg("user registered")
	return s.issuer.IssueUser(u.ID)
}

func (s *Service) LoginUser(ctx context.Context, in Credentials) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return "", err
	}

	u, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if err := auth.ComparePassword(u.Password, in.Password); err != nil {
		return "", err
	}
	return s.issuer.IssueUser(u.ID)
}

// LoginDoctor reports unknown emails and wrong passwords alike.
func (s *Service) LoginDoctor(ctx context.Context, in Credentials) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return "", err
	}

	d, err := s.repo.GetDoctorByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, appointment.ErrDoctorNotFound) {
			return "", auth.ErrInvalidCredentials
		}
		return "", err
	}
	if err := auth.ComparePassword(d.Password, in.Password); err != nil {
		return "", err
	}
	return s.issuer.IssueDoctor(d.ID)
}

func (s *Service) LoginAdmin(in Credentials) (string, error) {
	if err := s.check(in); err != nil {
		return "", err
	}
	return s.issuer.IssueAdmin(strings.TrimSpace(in.Email), in.Password)
}

func (s *Service) UserProfile(ctx context.Context, userID string) (*appointment.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateUserProfile stores the profile fields and, when given, the new image.
// The image is uploaded before anything is written.
func (s *Service) UpdateUserProfile(ctx context.Context, userID string, in ProfileInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.check(in); err != nil {
		return err
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}

	var imageURL string
	if in.Image != nil {
		url, err := s.uploader.UploadImage(ctx, in.Image.Name, in.Image.Reader)
		if err != nil {
			return err
		}
		imageURL = url
	}

	err := s.repo.UpdateUserProfile(ctx, userID, appointment.ProfileUpdate{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: *in.Address,
		DOB:     in.DOB,
		Gender:  in.Gender,
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if imageURL != "" {
		if err := s.repo.UpdateUserImage(ctx, userID, imageURL); err != nil {
			return fmt.Errorf("update profile image: %w", err)
		}
	}
	return nil
}

func (s *Service) DoctorProfile(ctx context.Context, doctorID string) (*appointment.Doctor, error) {
	return s.repo.GetDoctorByID(ctx, doctorID)
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, doctorID string, in DoctorProfileInput) error {
	if err := s.check(in); err != nil {
		return err
	}
	err := s.repo.UpdateDoctorProfile(ctx, doctorID, appointment.DoctorProfileUpdate{
		Fees:       in.Fees,
		Address:    in.Address,
		Available:  in.Available,
		About:      in.About,
		Experience: in.Experience,
	})
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	return nil
}

// ToggleAvailability flips the doctor's availability and returns the new value.
func (s *Service) ToggleAvailability(ctx context.Context, doctorID string) (bool, error) {
	if strings.TrimSpace(doctorID) == "" {
		return false, ErrMissingFields
	}
	available, err := s.repo.ToggleAvailability(ctx, doctorID)
	if err != nil {
		return false, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Bool("available", available).Msg("doctor availability changed")
	return available, nil
}

// AddDoctor creates a doctor account on behalf of an admin.
func (s *Service) AddDoctor(ctx context.Context, in DoctorInput) (*appointment.Doctor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var imageURL string
	if in.Image != nil {
		imageURL, err = s.uploader.UploadImage(ctx, in.Image.Name, in.Image.Reader)
		if err != nil {
			return nil, err
		}
	}

	d := &appointment.Doctor{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Email:       in.Email,
		Password:    hash,
		Image:       imageURL,
		Speciality:  in.Speciality,
		Degree:      in.Degree,
		Experience:  in.Experience,
		About:       in.About,
		Available:   true,
		Fees:        in.Fees,
		Address:     *in.Address,
		Date:        s.now().UnixMilli(),
		SlotsBooked: appointment.SlotLedger{},
	}
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	s.logger.Info().Str("doctor_id", d.ID).Msg("doctor added")
	return d, nil
}

// PublicDoctors lists doctors for the booking frontend, without emails.
func (s *Service) PublicDoctors(ctx context.Context) ([]appointment.Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	for i := range doctors {
		doctors[i].Email = ""
	}
	return doctors, nil
}

// AllDoctors lists doctors for the admin panel.
func (s *Service) AllDoctors(ctx context.Context) ([]appointment.Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

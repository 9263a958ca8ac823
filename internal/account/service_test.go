package account

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
)

type fakeUploader struct {
	uploads []string
	err     error
}

func (u *fakeUploader) UploadImage(ctx context.Context, name string, r io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	u.uploads = append(u.uploads, name)
	return "https://img.example.com/" + name, nil
}

type fixture struct {
	svc      *Service
	repo     *appointment.MemoryRepository
	issuer   *auth.Issuer
	uploader *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	issuer := auth.NewIssuer("account-test-secret", time.Hour, "admin@example.com", "admin-pass-123")
	uploader := &fakeUploader{}
	return &fixture{
		svc:      NewService(repo, issuer, uploader, zerolog.Nop()),
		repo:     repo,
		issuer:   issuer,
		uploader: uploader,
	}
}

func validDoctor() DoctorInput {
	return DoctorInput{
		Name:       "Dr. Grey",
		Email:      "Grey@Example.com",
		Password:   "doctor-pass",
		Speciality: "Dermatologist",
		Degree:     "MBBS",
		Experience: "4 Years",
		About:      "Skin specialist",
		Fees:       60,
		Address:    &appointment.Address{Line1: "1 Main St"},
	}
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.svc.RegisterUser(ctx, Registration{Name: "Ada", Email: " ADA@example.com ", Password: "password1"})
	require.NoError(t, err)

	p, err := f.issuer.Verify(tok, auth.RoleUser)
	require.NoError(t, err)

	u, err := f.repo.GetUserByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "password1", u.Password)

	_, err = f.svc.RegisterUser(ctx, Registration{Name: "Ada 2", Email: "ada@example.com", Password: "password2"})
	assert.ErrorIs(t, err, appointment.ErrEmailTaken)
}

func TestRegisterUserValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Registration
		want error
	}{
		{"missing name", Registration{Email: "a@example.com", Password: "password1"}, ErrMissingFields},
		{"blank name", Registration{Name: "  ", Email: "a@example.com", Password: "password1"}, ErrMissingFields},
		{"missing password", Registration{Name: "A", Email: "a@example.com"}, ErrMissingFields},
		{"bad email", Registration{Name: "A", Email: "not-an-email", Password: "password1"}, ErrInvalidEmail},
		{"short password", Registration{Name: "A", Email: "a@example.com", Password: "1234567"}, ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterUser(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoginUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterUser(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)

	tok, err := f.svc.LoginUser(ctx, Credentials{Email: "Ada@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = f.issuer.Verify(tok, auth.RoleUser)
	require.NoError(t, err)

	_, err = f.svc.LoginUser(ctx, Credentials{Email: "ada@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.LoginUser(ctx, Credentials{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, appointment.ErrUserNotFound)

	_, err = f.svc.LoginUser(ctx, Credentials{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestAddDoctorAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validDoctor()
	in.Image = &Image{Name: "grey.png", Reader: strings.NewReader("png-bytes")}

	d, err := f.svc.AddDoctor(ctx, in)
	require.NoError(t, err)
	assert.True(t, d.Available)
	assert.Equal(t, "grey@example.com", d.Email)
	assert.Equal(t, "https://img.example.com/grey.png", d.Image)
	assert.NotNil(t, d.SlotsBooked)

	tok, err := f.svc.LoginDoctor(ctx, Credentials{Email: "grey@example.com", Password: "doctor-pass"})
	require.NoError(t, err)
	p, err := f.issuer.Verify(tok, auth.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, d.ID, p.ID)

	_, err = f.svc.LoginDoctor(ctx, Credentials{Email: "grey@example.com", Password: "nope-nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.LoginDoctor(ctx, Credentials{Email: "ghost@example.com", Password: "doctor-pass"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.AddDoctor(ctx, validDoctor())
	assert.ErrorIs(t, err, appointment.ErrEmailTaken)
}

func TestAddDoctorValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noAddress := validDoctor()
	noAddress.Address = nil
	badFees := validDoctor()
	badFees.Fees = 0
	shortPass := validDoctor()
	shortPass.Password = "short"
	badEmail := validDoctor()
	badEmail.Email = "grey"

	for _, tc := range []struct {
		in   DoctorInput
		want error
	}{
		{noAddress, ErrMissingFields},
		{badFees, ErrInvalidFees},
		{shortPass, ErrWeakPassword},
		{badEmail, ErrInvalidEmail},
	} {
		_, err := f.svc.AddDoctor(ctx, tc.in)
		assert.ErrorIs(t, err, tc.want)
	}

	failing := validDoctor()
	failing.Image = &Image{Name: "x.png", Reader: strings.NewReader("x")}
	f.uploader.err = errors.New("cdn down")
	_, err := f.svc.AddDoctor(ctx, failing)
	require.Error(t, err)

	doctors, err := f.svc.AllDoctors(ctx)
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestLoginAdmin(t *testing.T) {
	f := newFixture(t)

	tok, err := f.svc.LoginAdmin(Credentials{Email: "admin@example.com", Password: "admin-pass-123"})
	require.NoError(t, err)
	p, err := f.issuer.Verify(tok, auth.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	_, err = f.svc.LoginAdmin(Credentials{Email: "admin@example.com", Password: "guess"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUpdateUserProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.svc.RegisterUser(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	p, err := f.issuer.Verify(tok, auth.RoleUser)
	require.NoError(t, err)

	err = f.svc.UpdateUserProfile(ctx, p.ID, ProfileInput{Name: "Ada L", Phone: "555"})
	assert.ErrorIs(t, err, ErrMissingFields)

	err = f.svc.UpdateUserProfile(ctx, p.ID, ProfileInput{
		Name:    "Ada L",
		Phone:   "555-0101",
		Address: &appointment.Address{Line1: "2 Side St", Line2: "Flat 3"},
		DOB:     "1990-01-01",
		Gender:  "Female",
		Image:   &Image{Name: "ada.jpg", Reader: strings.NewReader("jpg")},
	})
	require.NoError(t, err)

	u, err := f.svc.UserProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L", u.Name)
	assert.Equal(t, "Flat 3", u.Address.Line2)
	assert.Equal(t, "https://img.example.com/ada.jpg", u.Image)

	f.uploader.err = errors.New("cdn down")
	err = f.svc.UpdateUserProfile(ctx, p.ID, ProfileInput{
		Name:    "Changed",
		Phone:   "555",
		Address: &appointment.Address{},
		DOB:     "1990-01-01",
		Gender:  "Female",
		Image:   &Image{Name: "b.jpg", Reader: strings.NewReader("jpg")},
	})
	require.Error(t, err)

	u, err = f.svc.UserProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L", u.Name)
}

func TestDoctorProfileAndAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.AddDoctor(ctx, validDoctor())
	require.NoError(t, err)

	err = f.svc.UpdateDoctorProfile(ctx, d.ID, DoctorProfileInput{
		Fees:       80,
		Address:    appointment.Address{Line1: "New clinic"},
		Available:  true,
		About:      "Updated",
		Experience: "5 Years",
	})
	require.NoError(t, err)

	err = f.svc.UpdateDoctorProfile(ctx, d.ID, DoctorProfileInput{Fees: -1})
	assert.ErrorIs(t, err, ErrInvalidFees)
	err = f.svc.UpdateDoctorProfile(ctx, d.ID, DoctorProfileInput{Fees: 0, About: "Free consults"})
	assert.ErrorIs(t, err, ErrInvalidFees)

	profile, err := f.svc.DoctorProfile(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, profile.Fees)
	assert.Equal(t, "New clinic", profile.Address.Line1)

	available, err := f.svc.ToggleAvailability(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, available)

	available, err = f.svc.ToggleAvailability(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, available)

	_, err = f.svc.ToggleAvailability(ctx, "missing")
	assert.ErrorIs(t, err, appointment.ErrDoctorNotFound)

	public, err := f.svc.PublicDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Empty(t, public[0].Email)

	all, err := f.svc.AllDoctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, "grey@example.com", all[0].Email)
}

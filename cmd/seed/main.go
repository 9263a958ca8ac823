package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
	"github.com/healthline/booking/internal/bootstrap"
	"github.com/healthline/booking/internal/config"
	"github.com/healthline/booking/internal/logging"
)

var specialities = []string{
	"General physician",
	"Gynecologist",
	"Dermatologist",
	"Pediatricians",
	"Neurologist",
	"Gastroenterologist",
}

var degrees = []string{"MBBS", "MD", "MS", "DNB"}

const placeholderImage = "https://res.cloudinary.com/demo/image/upload/d_avatar.png/non_existing_id.png"

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	users := flag.Int("users", 200, "number of users to create")
	password := flag.String("password", "password123", "password shared by every seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalLogger := logging.New("prod", "seed")
		fatalLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, "seed")

	if cfg.StoreDriver == config.StoreMemory {
		logger.Fatal().Msg("seeding the memory store has no effect, set STORE_DRIVER")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := bootstrap.Open(ctx, cfg, logger, bootstrap.WithoutLocker())
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection error")
	}
	defer store.Close()

	// one bcrypt hash shared by every seeded account
	hash, err := auth.HashPassword(*password)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(ctx, store.Repo, hash, *doctors, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedUsers(ctx, store.Repo, hash, *users, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed users")
	}

	fmt.Fprintf(os.Stdout, "seed complete: %d doctors, %d users, password %q\n", *doctors, *users, *password)
}

func fakeAddress() appointment.Address {
	return appointment.Address{
		Line1: gofakeit.Street(),
		Line2: gofakeit.City() + ", " + gofakeit.State(),
	}
}

// fakeEmail returns an address unlikely to collide across seed runs.
func fakeEmail(prefix string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.%s@healthline.test", prefix, gofakeit.Username(), uuid.NewString()[:8]))
}

func seedDoctors(ctx context.Context, repo appointment.Repository, hash string, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	for i := 0; i < count; i++ {
		speciality := specialities[gofakeit.Number(0, len(specialities)-1)]
		years := gofakeit.Number(1, 15)
		d := &appointment.Doctor{
			ID:          uuid.NewString(),
			Name:        "Dr. " + gofakeit.Name(),
			Email:       fakeEmail("dr"),
			Password:    hash,
			Image:       placeholderImage,
			Speciality:  speciality,
			Degree:      degrees[gofakeit.Number(0, len(degrees)-1)],
			Experience:  fmt.Sprintf("%d Years", years),
			About:       fmt.Sprintf("%s practising in %s for %d years.", speciality, gofakeit.City(), years),
			Available:   gofakeit.Number(0, 9) > 0,
			Fees:        float64(gofakeit.Number(5, 30) * 10),
			Address:     fakeAddress(),
			Date:        time.Now().UnixMilli(),
			SlotsBooked: appointment.SlotLedger{},
		}
		if err := repo.CreateDoctor(ctx, d); err != nil {
			if errors.Is(err, appointment.ErrEmailTaken) {
				continue
			}
			return err
		}
		if i == 0 {
			logger.Info().Str("email", d.Email).Msg("sample doctor login")
		}
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedUsers(ctx context.Context, repo appointment.Repository, hash string, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding users")

	genders := []string{"Male", "Female", "Not Selected"}

	for i := 0; i < count; i++ {
		u := &appointment.User{
			ID:        uuid.NewString(),
			Name:      gofakeit.Name(),
			Email:     fakeEmail("user"),
			Password:  hash,
			Phone:     gofakeit.Phone(),
			Address:   fakeAddress(),
			Gender:    genders[gofakeit.Number(0, len(genders)-1)],
			DOB:       gofakeit.DateRange(time.Now().AddDate(-80, 0, 0), time.Now().AddDate(-18, 0, 0)).Format("2006-01-02"),
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateUser(ctx, u); err != nil {
			if errors.Is(err, appointment.ErrEmailTaken) {
				continue
			}
			return err
		}
		if i == 0 {
			logger.Info().Str("email", u.Email).Msg("sample user login")
		}
		if (i+1)%100 == 0 {
			logger.Info().Msgf("users seeded: %d/%d", i+1, count)
		}
	}

	logger.Info().Msg("users seeded")
	return nil
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/config"
	"github.com/healthline/booking/internal/logging"
)

const (
	msgSlotBooked = "Slot already booked"
	msgSlotBusy   = "Slot is being booked, please retry shortly"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	Users         int
	Days          int
	SlotsPerDay   int
	BookingRatio  float64
	CancelRatio   float64
	ReadRatio     float64
	AdminEmail    string
	AdminPassword string
}

type userSession struct {
	Email string
	Token string
}

type booked struct {
	ID    string
	Token string
}

type DataPool struct {
	Users   []userSession
	Doctors []string
	Dates   []string
	Times   []string

	mu           sync.Mutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

// TakeRandomAppointment removes and returns a random booked appointment.
func (dp *DataPool) TakeRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	idx := rng.Intn(len(dp.appointments))
	b := dp.appointments[idx]
	dp.appointments[idx] = dp.appointments[len(dp.appointments)-1]
	dp.appointments = dp.appointments[:len(dp.appointments)-1]
	return b, true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	api     *apiClient
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fatalLogger := logging.New("prod", "simulate")
		fatalLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(baseCfg.Env, "simulate")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		api:    &apiClient{baseURL: cfg.APIBaseURL, http: &http.Client{Timeout: 10 * time.Second}},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("users", len(sim.pool.Users)).
		Int("doctors", len(sim.pool.Doctors)).
		Int("slots_per_doctor", len(sim.pool.Dates)*len(sim.pool.Times)).
		Msg("data pool ready")

	sim.Run()
	sim.PrintReport()

	if !sim.Verify(ctx) {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		Users:         getInt("SIM_USERS", 50),
		Days:          getInt("SIM_DAYS", 3),
		SlotsPerDay:   getInt("SIM_SLOTS_PER_DAY", 8),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.2),
		AdminEmail:    base.AdminEmail,
		AdminPassword: base.AdminPassword,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Users <= 0 || cfg.Days <= 0 || cfg.SlotsPerDay <= 0 {
		return fmt.Errorf("SIM_USERS, SIM_DAYS and SIM_SLOTS_PER_DAY must be > 0")
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required to verify results")
	}
	return nil
}

// slotGrid returns date keys starting tomorrow and half-hour time labels from 10:00 AM.
func slotGrid(from time.Time, days, perDay int) (dates, times []string) {
	for d := 1; d <= days; d++ {
		day := from.AddDate(0, 0, d)
		dates = append(dates, fmt.Sprintf("%d_%d_%d", day.Day(), int(day.Month()), day.Year()))
	}
	start := time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < perDay; i++ {
		times = append(times, start.Add(time.Duration(i)*30*time.Minute).Format("03:04 PM"))
	}
	return dates, times
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}

	docs, err := s.api.doctors(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Available {
			pool.Doctors = append(pool.Doctors, d.ID)
		}
	}
	if len(pool.Doctors) == 0 {
		return nil, fmt.Errorf("no available doctors, run the seed first")
	}

	for i := 0; i < s.config.Users; i++ {
		email := fmt.Sprintf("sim.%s@healthline.test", uuid.NewString()[:12])
		tok, err := s.api.registerUser(ctx, gofakeit.Name(), email, "simulate-pass")
		if err != nil {
			return nil, err
		}
		pool.Users = append(pool.Users, userSession{Email: email, Token: tok})
	}

	pool.Dates, pool.Times = slotGrid(time.Now(), s.config.Days, s.config.SlotsPerDay)
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doListByUser(ctx, rng)
				} else {
					s.doDoctorList(ctx)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool
	user := p.Users[rng.Intn(len(p.Users))]

	start := time.Now()
	resp, err := s.api.call(ctx, http.MethodPost, "/api/user/book-appointment", "token", user.Token, map[string]string{
		"docId":    p.Doctors[rng.Intn(len(p.Doctors))],
		"slotDate": p.Dates[rng.Intn(len(p.Dates))],
		"slotTime": p.Times[rng.Intn(len(p.Times))],
	})
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		if resp.Success {
			success = true
			p.AddAppointment(booked{ID: resp.AppointmentID, Token: user.Token})
		} else {
			conflict = resp.Message == msgSlotBooked || resp.Message == msgSlotBusy
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.api.call(ctx, http.MethodPost, "/api/user/cancel-appointment", "token", b.Token, map[string]string{
		"appointmentId": b.ID,
	})
	latency := time.Since(start)

	s.metrics.Cancel.Record(latency, err == nil && resp.Success, false)
}

func (s *Simulator) doListByUser(ctx context.Context, rng *rand.Rand) {
	user := s.pool.Users[rng.Intn(len(s.pool.Users))]

	start := time.Now()
	resp, err := s.api.call(ctx, http.MethodGet, "/api/user/appointments", "token", user.Token, nil)
	latency := time.Since(start)

	s.metrics.ListByUser.Record(latency, err == nil && resp.Success, false)
}

func (s *Simulator) doDoctorList(ctx context.Context) {
	start := time.Now()
	_, err := s.api.doctors(ctx)
	s.metrics.DoctorList.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + rule())
	fmt.Println("SIMULATION REPORT")
	fmt.Println(rule())
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots contended: %d\n", len(s.pool.Doctors)*len(s.pool.Dates)*len(s.pool.Times))
	fmt.Println()

	printOperationReport("Book appointment", &s.metrics.Booking)
	printOperationReport("Cancel appointment", &s.metrics.Cancel)
	printOperationReport("List user appointments", &s.metrics.ListByUser)
	printOperationReport("List doctors", &s.metrics.DoctorList)
}

// Verify checks that no slot ended up with two active appointments and that
// doctor ledgers match the surviving appointments.
func (s *Simulator) Verify(ctx context.Context) bool {
	tok, err := s.api.adminLogin(ctx, s.config.AdminEmail, s.config.AdminPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("verification skipped")
		return false
	}
	appts, err := s.api.allAppointments(ctx, tok)
	if err != nil {
		s.logger.Error().Err(err).Msg("verification skipped")
		return false
	}
	docs, err := s.api.doctors(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("verification skipped")
		return false
	}

	ok := true
	for ref, n := range findDoubleBookings(appts) {
		s.logger.Error().Str("slot", ref.String()).Int("active", n).Msg("double booking detected")
		ok = false
	}
	for _, d := range findLedgerDrift(docs, appts) {
		s.logger.Warn().Str("drift", d).Msg("ledger drift")
	}

	fmt.Println(rule())
	if ok {
		fmt.Println("VERIFY: no double bookings")
	} else {
		fmt.Println("VERIFY: FAILED, double bookings found")
	}
	fmt.Println(rule())
	return ok
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

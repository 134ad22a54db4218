package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmydbr9/EVMR-sub000/internal/db"
	"github.com/sdmydbr9/EVMR-sub000/internal/policy"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	doctorIDs, err := seedDoctors(seedCtx, pool, 20)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(seedCtx, pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	serviceTypeIDs, err := seedServiceTypes(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed service types: %v", err)
	}
	if err := seedAvailabilityRules(seedCtx, pool, doctorIDs); err != nil {
		log.Fatalf("seed availability rules: %v", err)
	}
	if err := seedPolicies(seedCtx, pool, serviceTypeIDs); err != nil {
		log.Fatalf("seed cancellation policies: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"General Practice",
		"Surgery",
		"Dermatology",
		"Dentistry",
		"Cardiology",
		"Orthopedics",
		"Ophthalmology",
		"Exotics",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), gofakeit.RandomString(specialties))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, owner_name, owner_email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), gofakeit.PetName(), gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return err
		}
	}
	return nil
}

func seedServiceTypes(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	services := []struct {
		name        string
		durationMin int
		priceCents  int64
	}{
		{"Wellness Exam", 30, 6500},
		{"Vaccination", 15, 3500},
		{"Dental Cleaning", 60, 24000},
		{"Surgery Consult", 45, 9500},
		{"Follow-up Visit", 15, 4000},
	}

	log.Printf("seeding %d service types", len(services))

	ids := make([]uuid.UUID, 0, len(services))
	for _, s := range services {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO service_types (id, name, duration_minutes, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, s.name, s.durationMin, s.priceCents)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedAvailabilityRules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding availability rules for %d doctors", len(doctorIDs))

	repo := schedule.NewPgRepository(pool)
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	for _, doctorID := range doctorIDs {
		rule := schedule.AvailabilityRule{
			ResourceID:   doctorID,
			Recurrence:   schedule.RecurrenceWeekly,
			Days:         weekdays,
			Start:        9 * time.Hour,
			End:          17 * time.Hour,
			BufferBefore: 5 * time.Minute,
			BufferAfter:  5 * time.Minute,
			Breaks: []schedule.Break{
				{Start: 12 * time.Hour, End: 13 * time.Hour},
			},
			EffectiveFrom: time.Now().UTC().Truncate(24 * time.Hour),
		}
		if err := schedule.ValidateRule(rule); err != nil {
			return err
		}
		if _, err := repo.CreateRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func seedPolicies(ctx context.Context, pool *pgxpool.Pool, serviceTypeIDs []uuid.UUID) error {
	log.Println("seeding cancellation policies")

	repo := policy.NewPgRepository(pool)

	// Catch-all: 24h window, full refund inside the window, auto-approved.
	_, err := repo.CreatePolicy(ctx, policy.CancellationPolicy{
		Name:                  "Standard",
		Window:                policy.Window{Value: 24, Unit: policy.UnitHours},
		RefundPercent:         100,
		FallbackRefundPercent: 0,
		AutoApprove:           true,
		AllowRescheduling:     true,
		ReschedulingWindow:    policy.Window{Value: 12, Unit: policy.UnitHours},
	})
	if err != nil {
		return err
	}

	// Stricter policy for the first service type: 2 days, manual review.
	if len(serviceTypeIDs) > 0 {
		_, err = repo.CreatePolicy(ctx, policy.CancellationPolicy{
			Name:                  "Procedure",
			ServiceTypeIDs:        serviceTypeIDs[:1],
			Window:                policy.Window{Value: 2, Unit: policy.UnitDays},
			RefundPercent:         80,
			FallbackRefundPercent: 25,
			AutoApprove:           false,
			AllowRescheduling:     false,
			ReschedulingFee:       2500,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

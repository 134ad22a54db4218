package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmydbr9/EVMR-sub000/internal/config"
	"github.com/sdmydbr9/EVMR-sub000/internal/db"
)

// The simulator hammers the booking API with concurrent workers that all
// fight over the same doctors' slots, then audits the database for
// buffer-expanded overlaps. Any overlap found is a correctness failure of the
// per-resource lock.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	DoctorLimit int
	PostgresDSN string
}

type DataPool struct {
	Doctors      []uuid.UUID
	Patients     []uuid.UUID
	ServiceTypes []uuid.UUID

	mu    sync.RWMutex
	slots map[uuid.UUID][]time.Time // doctor -> candidate starts
}

func (dp *DataPool) SetSlots(doctor uuid.UUID, slots []time.Time) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.slots[doctor] = slots
}

func (dp *DataPool) RandomSlot(doctor uuid.UUID) (time.Time, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	slots := dp.slots[doctor]
	if len(slots) == 0 {
		return time.Time{}, false
	}
	return slots[rand.Intn(len(slots))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	idx := func(pct int) time.Duration {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return latencies[i]
	}
	return avg, idx(50), idx(95)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d doctors, %d patients, %d service types",
		len(pool.Doctors), len(pool.Patients), len(pool.ServiceTypes))

	client := &http.Client{Timeout: 10 * time.Second}

	// Pull tomorrow's candidate slots once per doctor; workers then race to
	// book from the same pre-fetched pool, which maximises conflicts.
	day := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	next := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
	for _, doctor := range pool.Doctors {
		slots, err := fetchSlots(client, cfg.APIBaseURL, doctor, pool.ServiceTypes[0], day, next)
		if err != nil {
			log.Printf("fetch slots for %s: %v", doctor, err)
			continue
		}
		pool.SetSlots(doctor, slots)
	}

	var metrics OperationMetrics
	runCtx, stopRun := context.WithTimeout(context.Background(), cfg.Duration)
	defer stopRun()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(runCtx, client, cfg, pool, &metrics)
		}()
	}
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("bookings: total=%d success=%d conflict=%d error=%d",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency: avg=%s p50=%s p95=%s", avg, p50, p95)

	overlaps, err := auditOverlaps(context.Background(), pgPool)
	if err != nil {
		log.Fatalf("audit overlaps: %v", err)
	}
	if overlaps > 0 {
		log.Fatalf("FAIL: %d buffer-expanded overlaps found", overlaps)
	}
	log.Println("PASS: no overlapping active appointments")
}

func worker(ctx context.Context, client *http.Client, cfg SimConfig, pool *DataPool, metrics *OperationMetrics) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		doctor := pool.Doctors[rand.Intn(len(pool.Doctors))]
		start, ok := pool.RandomSlot(doctor)
		if !ok {
			continue
		}
		patient := pool.Patients[rand.Intn(len(pool.Patients))]

		began := time.Now()
		status, err := postBooking(client, cfg.APIBaseURL, doctor, patient, pool.ServiceTypes[0], start)
		latency := time.Since(began)

		if err != nil {
			metrics.Record(latency, false, false)
			continue
		}
		metrics.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
	}
}

func fetchSlots(client *http.Client, baseURL string, doctor, serviceType uuid.UUID, from, to string) ([]time.Time, error) {
	url := fmt.Sprintf("%s/resources/%s/slots?from=%s&to=%s&service_type_id=%s",
		baseURL, doctor, from, to, serviceType)

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("slots request failed: %d %s", resp.StatusCode, body)
	}

	var parsed struct {
		Slots []time.Time `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Slots, nil
}

func postBooking(client *http.Client, baseURL string, doctor, patient, serviceType uuid.UUID, start time.Time) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"resource_id":     doctor.String(),
		"patient_id":      patient.String(),
		"service_type_id": serviceType.String(),
		"start":           start,
	})
	if err != nil {
		return 0, err
	}

	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// auditOverlaps counts pairs of non-cancelled appointments on the same
// resource whose raw intervals overlap. Buffers only widen intervals, so raw
// overlap is already a violation.
func auditOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.resource_id = b.resource_id
		 AND a.id < b.id
		 AND a.status <> 'cancelled'
		 AND b.status <> 'cancelled'
		 AND a.start_time < b.start_time + (b.duration_minutes || ' minutes')::interval
		 AND b.start_time < a.start_time + (a.duration_minutes || ' minutes')::interval
	`).Scan(&count)
	return count, err
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{slots: make(map[uuid.UUID][]time.Time)}

	if err := loadIDs(ctx, pool, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit, &dp.Doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, 1000, &dp.Patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if err := loadIDs(ctx, pool, `SELECT id FROM service_types LIMIT $1`, 10, &dp.ServiceTypes); err != nil {
		return nil, fmt.Errorf("load service types: %w", err)
	}

	if len(dp.Doctors) == 0 || len(dp.Patients) == 0 || len(dp.ServiceTypes) == 0 {
		return nil, fmt.Errorf("empty data pool, run the seed command first")
	}
	return dp, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int, dst *[]uuid.UUID) error {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		*dst = append(*dst, id)
	}
	return rows.Err()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		DoctorLimit: getInt("SIM_DOCTOR_LIMIT", 5),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

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

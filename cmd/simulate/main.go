package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/api"
	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	"github.com/hackgods/clinic-desk-scheduling/internal/db"
	"github.com/hackgods/clinic-desk-scheduling/internal/logger"
)

type simConfig struct {
	BaseURL    string
	Duration   time.Duration
	Workers    int
	Days       int
	BookRatio  float64
	MoveRatio  float64
	StaffID    uuid.UUID
	SampleSize int
}

// dataPool holds the reference ids loaded from Postgres plus the
// appointments booked during the run.
type dataPool struct {
	Patients   []uuid.UUID
	Physicians []uuid.UUID
	Rooms      []uuid.UUID
	Procedures []uuid.UUID

	mu     sync.RWMutex
	booked []bookedAppointment
}

type bookedAppointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

func (p *dataPool) addBooked(b bookedAppointment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booked = append(p.booked, b)
}

func (p *dataPool) randomBooked(rng *rand.Rand) (bookedAppointment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.booked) == 0 {
		return bookedAppointment{}, false
	}
	return p.booked[rng.Intn(len(p.booked))], true
}

type opMetrics struct {
	total, success, conflict, failed int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *opMetrics) record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&m.success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.failed, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *opMetrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := min(len(sorted)*p/100, len(sorted)-1)
	return sorted[idx]
}

type simulator struct {
	cfg     simConfig
	pool    *dataPool
	client  *http.Client
	slots   []calendar.TimeOfDay
	book    opMetrics
	move    opMetrics
	decide  opMetrics
	browse  opMetrics
	started time.Time
}

func main() {
	var cfg simConfig
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "api base url")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	flag.IntVar(&cfg.Workers, "workers", 10, "concurrent workers")
	flag.IntVar(&cfg.Days, "days", 5, "spread bookings over this many days from tomorrow")
	flag.Float64Var(&cfg.BookRatio, "book", 0.6, "share of booking operations")
	flag.Float64Var(&cfg.MoveRatio, "move", 0.2, "share of reschedule submissions")
	flag.IntVar(&cfg.SampleSize, "sample", 2000, "max reference rows to load per table")
	flag.Parse()
	cfg.StaffID = uuid.New()

	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(baseCfg, "simulate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Workers <= 0 || cfg.Duration <= 0 || cfg.Days <= 0 {
		log.Fatal("workers, duration and days must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg.SampleSize)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("reference data loaded",
		zap.Int("patients", len(pool.Patients)),
		zap.Int("physicians", len(pool.Physicians)),
		zap.Int("rooms", len(pool.Rooms)),
	)

	slots, err := calendar.Enumerate(baseCfg.SlotStepMinutes)
	if err != nil {
		log.Fatal("slot grid", zap.Error(err))
	}

	sim := &simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
		slots:  slots,
	}
	sim.run(log)
	sim.report()
}

func loadDataPool(ctx context.Context, pg *pgxpool.Pool, limit int) (*dataPool, error) {
	p := &dataPool{}
	tables := []struct {
		name string
		dst  *[]uuid.UUID
	}{
		{"patients", &p.Patients},
		{"physicians", &p.Physicians},
		{"rooms", &p.Rooms},
		{"procedures", &p.Procedures},
	}

	for _, t := range tables {
		rows, err := pg.Query(ctx, `SELECT id FROM `+t.name+` LIMIT $1`, limit)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", t.name, err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			*t.dst = append(*t.dst, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if len(*t.dst) == 0 {
			return nil, fmt.Errorf("no %s found, run cmd/seed first", t.name)
		}
	}
	return p, nil
}

func (s *simulator) run(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	log.Info("simulation starting", zap.Duration("duration", s.cfg.Duration), zap.Int("workers", s.cfg.Workers))
	s.started = time.Now()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	log.Info("simulation complete")
}

func (s *simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.cfg.BookRatio:
			s.doBook(ctx, rng)
		case r < s.cfg.BookRatio+s.cfg.MoveRatio:
			s.doMove(ctx, rng)
		default:
			s.doBrowse(ctx, rng)
		}
	}
}

func pick(rng *rand.Rand, ids []uuid.UUID) uuid.UUID {
	return ids[rng.Intn(len(ids))]
}

func (s *simulator) randomSlot(rng *rand.Rand) (string, string) {
	day := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.cfg.Days))
	return calendar.FormatDate(day), s.slots[rng.Intn(len(s.slots))].String()
}

func (s *simulator) send(ctx context.Context, method, path string, callerID uuid.UUID, role string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderCallerID, callerID.String())
	req.Header.Set(api.HeaderCallerRole, role)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *simulator) doBook(ctx context.Context, rng *rand.Rand) {
	date, at := s.randomSlot(rng)
	patientID := pick(rng, s.pool.Patients)
	body := api.CreateAppointmentRequest{
		PatientID:   patientID.String(),
		PhysicianID: pick(rng, s.pool.Physicians).String(),
		ProcedureID: pick(rng, s.pool.Procedures).String(),
		RoomID:      pick(rng, s.pool.Rooms).String(),
		Date:        date,
		Time:        at,
	}

	var created api.AppointmentResponse
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments", s.cfg.StaffID, "staff", body, &created)
	if ctx.Err() != nil {
		return
	}
	s.book.record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.addBooked(bookedAppointment{ID: created.ID, PatientID: patientID})
	}
}

// doMove submits a reschedule as the owning patient and lets the desk
// accept it straight away.
func (s *simulator) doMove(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.randomBooked(rng)
	if !ok {
		return
	}
	date, at := s.randomSlot(rng)

	var created api.RescheduleResponse
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule-requests",
		appt.PatientID, "patient", api.CreateRescheduleRequest{Date: date, Time: at, Reason: "simulated"}, &created)
	if ctx.Err() != nil {
		return
	}
	s.move.record(time.Since(start), status, err)
	if err != nil || status != http.StatusCreated {
		return
	}

	decision := "accept"
	if rng.Intn(4) == 0 {
		decision = "deny"
	}
	start = time.Now()
	status, err = s.send(ctx, http.MethodPost, "/reschedule-requests/"+created.ID.String()+"/decision",
		s.cfg.StaffID, "staff", api.DecisionRequest{Decision: decision}, nil)
	if ctx.Err() != nil {
		return
	}
	s.decide.record(time.Since(start), status, err)
}

func (s *simulator) doBrowse(ctx context.Context, rng *rand.Rand) {
	date, _ := s.randomSlot(rng)
	path := fmt.Sprintf("/availability?date=%s&physician_id=%s&room_id=%s",
		date, pick(rng, s.pool.Physicians), pick(rng, s.pool.Rooms))

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, path, s.cfg.StaffID, "staff", nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.browse.record(time.Since(start), status, err)
}

func (s *simulator) report() {
	elapsed := time.Since(s.started)
	fmt.Println("\n" + strings.Repeat("=", 72))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("Duration: %s  Workers: %d\n\n", elapsed.Round(time.Millisecond), s.cfg.Workers)

	printOp("Book appointment", &s.book)
	printOp("Submit reschedule", &s.move)
	printOp("Decide reschedule", &s.decide)
	printOp("Availability", &s.browse)
}

func printOp(name string, m *opMetrics) {
	total := atomic.LoadInt64(&m.total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&m.success)
	conflict := atomic.LoadInt64(&m.conflict)
	failed := atomic.LoadInt64(&m.failed)

	fmt.Printf("%s:\n", name)
	fmt.Printf("  total=%d success=%d (%.1f%%) conflict=%d (%.1f%%) failed=%d (%.1f%%)\n",
		total, success, pct(success), conflict, pct(conflict), failed, pct(failed))
	fmt.Printf("  latency p50=%s p95=%s p99=%s\n\n",
		m.percentile(50).Round(time.Millisecond),
		m.percentile(95).Round(time.Millisecond),
		m.percentile(99).Round(time.Millisecond))
}

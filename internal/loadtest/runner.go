package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"cloudpose/internal/config"
	"cloudpose/internal/logging"
	"cloudpose/internal/services/posesvc"
)

// FileNameCount bounds the random img_<n>.jpg names attached to requests.
const FileNameCount = 128

// Sender posts one envelope and reports the raw reply.
type Sender interface {
	Send(ctx context.Context, op posesvc.Operation, env posesvc.Envelope) (*posesvc.Response, error)
}

// Options controls a single run.
type Options struct {
	Users     int
	SpawnRate int
	Duration  time.Duration
	WaitMin   time.Duration
	WaitMax   time.Duration
	// Seed fixes the random source; zero picks a time-based seed.
	Seed uint64
}

// OptionsFromConfig maps the [loadtest] section onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	lt := cfg.LoadTest
	return Options{
		Users:     lt.Users,
		SpawnRate: lt.SpawnRate,
		Duration:  time.Duration(lt.DurationSeconds) * time.Second,
		WaitMin:   time.Duration(lt.WaitMinMillis) * time.Millisecond,
		WaitMax:   time.Duration(lt.WaitMaxMillis) * time.Millisecond,
	}
}

func (o Options) validate() error {
	switch {
	case o.Users <= 0:
		return errors.New("users must be positive")
	case o.SpawnRate <= 0:
		return errors.New("spawn rate must be positive")
	case o.Duration <= 0:
		return errors.New("duration must be positive")
	case o.WaitMin < 0 || o.WaitMax < o.WaitMin:
		return fmt.Errorf("invalid wait range %s..%s", o.WaitMin, o.WaitMax)
	}
	return nil
}

// Runner executes load-test runs against a Sender.
type Runner struct {
	sender Sender
	images []string
	logger *slog.Logger

	run func(ctx context.Context, opts Options) (Report, error)
}

// NewRunner builds a runner over preloaded base64 images.
func NewRunner(sender Sender, images []string, logger *slog.Logger) (*Runner, error) {
	if sender == nil {
		return nil, errors.New("loadtest: sender required")
	}
	if len(images) == 0 {
		return nil, errors.New("loadtest: at least one image required")
	}
	r := &Runner{
		sender: sender,
		images: images,
		logger: logging.NewComponentLogger(logger, "loadtest"),
	}
	r.run = r.Run
	return r, nil
}

// Run spawns users at the configured rate and keeps them busy until the
// duration elapses or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	if err := opts.validate(); err != nil {
		return Report{}, fmt.Errorf("loadtest: %w", err)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	report := Report{
		Users:     opts.Users,
		SpawnRate: opts.SpawnRate,
		Duration:  opts.Duration,
		StartedAt: time.Now(),
	}
	r.logger.Info("load test starting",
		logging.Int("users", opts.Users),
		logging.Int("spawn_rate", opts.SpawnRate),
		logging.Duration("duration", opts.Duration),
	)

	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	stats := newCollector()
	var wg sync.WaitGroup
	interval := time.Second / time.Duration(opts.SpawnRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

spawn:
	for i := 0; i < opts.Users; i++ {
		if i > 0 {
			select {
			case <-runCtx.Done():
				break spawn
			case <-ticker.C:
			}
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			u := &user{
				id:     id,
				runner: r,
				rng:    rand.New(rand.NewPCG(seed, uint64(id))),
				stats:  stats,
				opts:   opts,
			}
			u.loop(runCtx)
		}(i)
		report.Spawned++
	}

	wg.Wait()
	report.FinishedAt = time.Now()
	report.Endpoints, report.Total = stats.snapshot()

	r.logger.Info("load test finished",
		logging.Int64("requests", report.Total.Requests),
		logging.Int64("failures", report.Total.Failures),
		logging.Float64("success_percent", report.Total.SuccessPercent()),
		logging.Float64("avg_response_ms", report.Total.AvgResponseMS()),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type user struct {
	id     int
	runner *Runner
	rng    *rand.Rand
	stats  *collector
	opts   Options
}

func (u *user) loop(ctx context.Context) {
	for {
		if !sleepCtx(ctx, u.wait()) {
			return
		}
		op := posesvc.OpKeypoints
		if u.rng.IntN(2) == 1 {
			op = posesvc.OpAnnotated
		}
		env := posesvc.NewEnvelope(
			u.runner.images[u.rng.IntN(len(u.runner.images))],
			fmt.Sprintf("img_%d.jpg", u.rng.IntN(FileNameCount)+1),
		)
		u.send(ctx, op, env)
	}
}

func (u *user) wait() time.Duration {
	span := u.opts.WaitMax - u.opts.WaitMin
	if span <= 0 {
		return u.opts.WaitMin
	}
	return u.opts.WaitMin + time.Duration(u.rng.Int64N(int64(span)+1))
}

func (u *user) send(ctx context.Context, op posesvc.Operation, env posesvc.Envelope) {
	logger := u.runner.logger
	start := time.Now()
	resp, err := u.runner.sender.Send(ctx, op, env)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			// cut off by the end of the run
			return
		}
		logger.Error("request failed",
			logging.String(logging.FieldOperation, string(op)),
			logging.String(logging.FieldCorrelationID, env.ID),
			logging.Error(err),
		)
		u.stats.record(op, elapsed, true)
		return
	}

	if resp.StatusCode != 200 {
		logger.Error("unexpected status",
			logging.String(logging.FieldOperation, string(op)),
			logging.Int("status", resp.StatusCode),
			logging.String("body", truncate(string(resp.Body), 200)),
		)
		u.stats.record(op, elapsed, true)
		return
	}
	if !json.Valid(resp.Body) {
		logging.WarnWithContext(logger, "failed to parse JSON response", "response_unparseable",
			logging.String(logging.FieldOperation, string(op)),
			logging.String(logging.FieldCorrelationID, env.ID),
		)
	}
	u.stats.record(op, elapsed, false)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

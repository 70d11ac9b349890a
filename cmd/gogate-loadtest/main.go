package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var routes = []string{"/home", "/dashboard", "/settings?tab=profile", "/reports/42", "/login"}

func main() {
	var (
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (route + session)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gogate-loadtest", "session key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goGate.DefaultConfig()
	cfg.Auth.Delay = 0
	cfg.Session.RedisPrefix = *prefix

	store, err := goGate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if _, err := store.Login(ctx, "loadtest@example.com", "pw"); err != nil {
		fmt.Fprintf(os.Stderr, "seed login failed: %v\n", err)
		os.Exit(1)
	}

	routeStats := runRoutePhase(ctx, store, *ops, *concurrency)
	sessionStats := runSessionPhase(ctx, store, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("route", routeStats)
	printStats("session", sessionStats)

	snap := store.MetricsSnapshot()
	fmt.Printf("login ok=%d failed=%d logout=%d redirects=%d\n",
		snap.Counters[goGate.MetricLoginSuccess],
		snap.Counters[goGate.MetricLoginFailure],
		snap.Counters[goGate.MetricLogout],
		snap.Counters[goGate.MetricRouteRedirected],
	)
}

// runRoutePhase measures guard checks while the session is held; every
// decision should allow.
func runRoutePhase(ctx context.Context, store *goGate.Store, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				d := store.CheckRoute(ctx, routes[r.Intn(len(routes))])
				elapsed := time.Since(t0)
				if !d.Allow {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runSessionPhase churns login, signup, and logout against storage. A worker
// counts a failure when the store reports an error or the session it sees
// afterwards is half-present.
func runSessionPhase(ctx context.Context, store *goGate.Store, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				email := fmt.Sprintf("user%d@example.com", r.Intn(1000))

				var err error
				t0 := time.Now()
				switch r.Intn(3) {
				case 0:
					_, err = store.Login(ctx, email, "pw")
				case 1:
					_, err = store.Signup(ctx, email, "pw", "Load Test")
				default:
					store.Logout(ctx)
				}
				d := time.Since(t0)

				sess, ok := store.Session()
				if err != nil || (ok && (sess.Token == "" || sess.Identity.Email == "")) {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

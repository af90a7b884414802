package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/storage/memory"
)

// SessionCounts defines the session counts for full runs.
var SessionCounts = []int{5000, 10000, 50000, 100000, 500000}

// SmallSessionCounts for quick benchmarks.
var SmallSessionCounts = []int{1000, 5000, 10000}

const benchWindow = 20 * time.Minute

// createSession creates a live session for accountID.
func createSession(b *testing.B, accountID string) *domain.Session {
	b.Helper()
	tok, err := domain.GenerateToken()
	if err != nil {
		b.Fatalf("GenerateToken: %v", err)
	}
	principal := domain.Principal{AccountID: accountID, Username: "bench_" + accountID, Role: domain.RoleUser}
	s, err := domain.NewSession(principal, tok, benchWindow, time.Now())
	if err != nil {
		b.Fatalf("NewSession: %v", err)
	}
	return s
}

// prefillStore stores count sessions spread over count accounts and binds
// each of them.
func prefillStore(b *testing.B, store *memory.SessionStore, ids *identity.Store, count int) []*domain.Session {
	b.Helper()
	ctx := context.Background()
	sessions := make([]*domain.Session, count)
	for i := range sessions {
		s := createSession(b, fmt.Sprintf("account-%d", i))
		if err := store.Create(ctx, s); err != nil {
			b.Fatalf("Create: %v", err)
		}
		if ids != nil {
			if err := ids.Bind(ctx, s.Principal.AccountID, s.Token, s); err != nil {
				b.Fatalf("Bind: %v", err)
			}
		}
		sessions[i] = s
	}
	return sessions
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithSessionCounts runs a benchmark function with various session counts.
func runWithSessionCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("sessions_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

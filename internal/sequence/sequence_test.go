package sequence_test

import (
	"context"
	"sync"
	"testing"

	"taskdesk/internal/db"
	"taskdesk/internal/migrate"
	"taskdesk/internal/sequence"
)

func newIssuer(t *testing.T) sequence.Issuer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sequence.Issuer{DB: conn}
}

func TestNextStartsAtOne(t *testing.T) {
	issuer := newIssuer(t)
	ctx := context.Background()
	v, err := issuer.Next(ctx, sequence.DomainTask)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if v != 1 {
		t.Fatalf("first value = %d, want 1", v)
	}
	v, err = issuer.Next(ctx, sequence.DomainTask)
	if err != nil || v != 2 {
		t.Fatalf("second value = %d (%v), want 2", v, err)
	}
}

func TestDomainsIndependent(t *testing.T) {
	issuer := newIssuer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := issuer.Next(ctx, sequence.DomainTask); err != nil {
			t.Fatalf("task next: %v", err)
		}
	}
	v, err := issuer.Next(ctx, sequence.DomainReceive)
	if err != nil || v != 1 {
		t.Fatalf("receive counter should start at 1, got %d (%v)", v, err)
	}
	cur, err := issuer.Current(ctx, sequence.DomainTask)
	if err != nil || cur != 3 {
		t.Fatalf("task current = %d (%v), want 3", cur, err)
	}
}

func TestConcurrentIssueIsGapFree(t *testing.T) {
	issuer := newIssuer(t)
	ctx := context.Background()
	const n = 100
	values := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := issuer.Next(ctx, sequence.DomainTask)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			values <- v
		}()
	}
	wg.Wait()
	close(values)
	seen := map[int64]bool{}
	for v := range values {
		if seen[v] {
			t.Fatalf("value %d issued twice", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("issued %d distinct values, want %d", len(seen), n)
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("gap: value %d never issued", i)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := sequence.Format("TSK", 4, 7); got != "TSK-0007" {
		t.Fatalf("format = %q", got)
	}
	if got := sequence.Format("RCV", 4, 12345); got != "RCV-12345" {
		t.Fatalf("overflow format = %q", got)
	}
}

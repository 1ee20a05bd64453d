package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"tuition-receipts-go/models"
	"tuition-receipts-go/payments"
)

var _ payments.Store = (*RedisService)(nil)

func newTestService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := InitializeRedisClient(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("InitializeRedisClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisService(client, "test:"), mr
}

func TestRedisService_Toggle(t *testing.T) {
	s, mr := newTestService(t)
	key := models.StudentKey("Nguyen Van A-400000")

	if paid, err := s.IsPaid(key); err != nil || paid {
		t.Fatalf("IsPaid(unknown) = %v, %v", paid, err)
	}
	if paid, err := s.Toggle(key); err != nil || !paid {
		t.Fatalf("Toggle() = %v, %v, want true", paid, err)
	}
	if paid, _ := s.IsPaid(key); !paid {
		t.Error("IsPaid after toggle = false")
	}
	if paid, _ := s.Toggle(key); paid {
		t.Error("second Toggle() = true, want false")
	}

	if !mr.Exists("test:payments") {
		t.Error("payments hash not written under the key prefix")
	}
}

func TestRedisService_PaidAndReset(t *testing.T) {
	s, mr := newTestService(t)
	s.Toggle("An-1")
	s.Toggle("Binh-2")
	s.Toggle("Binh-2")
	s.Toggle("Chi-3")

	paid, err := s.Paid()
	if err != nil {
		t.Fatalf("Paid() error = %v", err)
	}
	if len(paid) != 2 || !paid["An-1"] || !paid["Chi-3"] || paid["Binh-2"] {
		t.Errorf("Paid() = %v", paid)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mr.Exists("test:payments") {
		t.Error("payments hash still present after reset")
	}
	paid, _ = s.Paid()
	if len(paid) != 0 {
		t.Errorf("Paid() after reset = %v", paid)
	}
}

func TestRedisService_MalformedCounter(t *testing.T) {
	s, mr := newTestService(t)
	mr.HSet("test:payments", "An-1", "yes")

	if paid, err := s.IsPaid("An-1"); err != nil || paid {
		t.Errorf("IsPaid(malformed) = %v, %v", paid, err)
	}
}

func TestInitializeRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := InitializeRedisClient(context.Background(), addr, "", 0); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}

package graph

import (
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestNewStore_NilLoggerDiscards(t *testing.T) {
	s, err := NewStore(new(pgxpool.Pool), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.logger == nil {
		t.Fatal("NewStore() left logger nil")
	}
	if s.logger == slog.Default() {
		t.Error("nil logger fell back to the process default instead of a nop logger")
	}
}

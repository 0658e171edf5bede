package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

func TestRedisLoad(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisFromClient(client, "ts:", "en", "zh", zap.NewNop())

	mock.ExpectHGetAll("ts:terms:en-zh").SetVal(map[string]string{
		"world": `{"source":"World","target":"世界"}`,
		"hello": `{"source":"Hello","target":"你好"}`,
		"bad":   `not json`,
	})

	entries, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []terms.Entry{{Source: "Hello", Target: "你好"}, {Source: "World", Target: "世界"}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Load() = %v, want %v", entries, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisLoadError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisFromClient(client, "", "en", "zh", zap.NewNop())

	mock.ExpectHGetAll("terms:en-zh").SetErr(errors.New("connection refused"))

	if _, err := s.Load(context.Background()); err == nil {
		t.Error("Load succeeded despite Redis error")
	}
}

func TestRedisCommitError(t *testing.T) {
	client, _ := redismock.NewClientMock()
	s := NewRedisFromClient(client, "", "en", "zh", zap.NewNop())

	err := s.Commit(context.Background(), terms.Batch{Upserts: []terms.Entry{{Source: "a", Target: "b"}}})
	if err == nil {
		t.Error("Commit succeeded without a reachable server")
	}
}

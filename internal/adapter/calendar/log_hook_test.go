package calendar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
)

func TestLogHookSync(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	hook := NewLogHook(log)
	card := entity.NewCard("c1", "learner-1", entity.ContentRef{Type: entity.ContentQuestion, ID: "q1"}, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC))
	if err := hook.Sync(context.Background(), card); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"card_id":"c1"`, `"due":"2025-03-04T09:00:00Z"`, `"component":"calendar"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLogHookCancelled(t *testing.T) {
	hook := NewLogHook(logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hook.Sync(ctx, &entity.Card{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quiz-attempt-engine/internal/domain"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, err=%v", name, err)
		}
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"8080\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := runMigrations(context.Background(), path); err == nil {
		t.Fatalf("expected error without postgres url")
	}
}

func TestSampleQuestionsAreWellFormed(t *testing.T) {
	topics := sampleTopics()
	for _, q := range sampleQuestions() {
		if !q.Type.Valid() || !q.Active || q.OwnerID != sampleOwner {
			t.Fatalf("invalid sample question %+v", q)
		}
		if _, ok := topics[q.TopicID]; !ok {
			t.Fatalf("question %d references unknown topic %d", q.ID, q.TopicID)
		}
		if q.Type == domain.Flashcard {
			continue
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			t.Fatalf("question %d has %d correct options", q.ID, correct)
		}
	}
}

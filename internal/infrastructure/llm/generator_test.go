package llm

import (
	"context"
	"strings"
	"testing"
)

func TestNewGeneratorRepository_Ollama(t *testing.T) {
	testCases := []struct {
		name     string
		provider string
	}{
		{"empty provider", ""},
		{"ollama provider", "ollama"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo, err := NewGeneratorRepository(context.Background(), Config{Provider: tc.provider})
			if err != nil {
				t.Fatalf("failed to create ollama generator: %v", err)
			}

			if _, ok := repo.(*ollamaGenerator); !ok {
				t.Errorf("expected ollamaGenerator type, got %T", repo)
			}
			if repo.Name() != "ollama" {
				t.Errorf("expected name 'ollama', got %s", repo.Name())
			}
		})
	}
}

func TestNewGeneratorRepository_Gemini(t *testing.T) {
	repo, err := NewGeneratorRepository(context.Background(), Config{
		Provider: "gemini",
		APIKey:   "test-api-key",
	})
	if err != nil {
		t.Fatalf("failed to create gemini generator: %v", err)
	}

	if _, ok := repo.(*geminiGenerator); !ok {
		t.Errorf("expected geminiGenerator type, got %T", repo)
	}
}

func TestNewGeneratorRepository_GeminiNoAPIKey(t *testing.T) {
	_, err := NewGeneratorRepository(context.Background(), Config{Provider: "gemini"})
	if err == nil {
		t.Error("expected error when gemini API key is empty, got nil")
	}
}

func TestNewGeneratorRepository_UnknownProvider(t *testing.T) {
	_, err := NewGeneratorRepository(context.Background(), Config{Provider: "unknown-provider"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}

	if !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Errorf("expected 'unknown LLM provider' error, got: %v", err)
	}
}

package provider

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

func TestGenerateSchema_StrictObject(t *testing.T) {
	t.Parallel()

	s := GenerateSchema[sentimentResponse]()
	if got := s[additionalPropertiesKey]; got != false {
		t.Fatalf("additionalProperties=%v, want false", got)
	}
	req, ok := s[requiredKey].([]string)
	if !ok {
		t.Fatalf("required=%T, want []string", s[requiredKey])
	}
	sort.Strings(req)
	if strings.Join(req, ",") != "polarity,subjectivity" {
		t.Fatalf("required=%v, want [polarity subjectivity]", req)
	}
}

func TestSchema_Title(t *testing.T) {
	t.Parallel()

	b, err := Schema[sentimentResponse]("sentiment")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if !strings.Contains(string(b), `"title": "sentiment"`) {
		t.Fatalf("schema missing title: %s", b)
	}
}

func TestRetryWait(t *testing.T) {
	t.Parallel()

	if _, retry := retryWait(errors.New("429 Too Many Requests"), 0); !retry {
		t.Fatalf("rate limit on first attempt: retry=false, want true")
	}
	if _, retry := retryWait(errors.New("500 internal server error"), maxRetries-1); retry {
		t.Fatalf("server error on last attempt: retry=true, want false")
	}
	if _, retry := retryWait(errors.New("401 unauthorized"), 0); retry {
		t.Fatalf("auth error: retry=true, want false")
	}
}

func TestCallWithRetry_NilClient(t *testing.T) {
	t.Parallel()

	if _, err := CallWithRetry(context.Background(), nil, responses.ResponseNewParams{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenAISentiment_NilClient(t *testing.T) {
	t.Parallel()

	s := NewOpenAISentimentWithClient(nil, "")
	if s.model != DefaultSentimentModel {
		t.Fatalf("model=%q, want %q", s.model, DefaultSentimentModel)
	}
	if _, err := s.Sentiment(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenAISentiment_Cached(t *testing.T) {
	t.Parallel()

	s, err := NewOpenAISentiment("sk-test", "m")
	if err != nil {
		t.Fatalf("NewOpenAISentiment: %v", err)
	}
	want := textprim.NewSentiment(0.5, 0.4)
	s.cache["hello"] = want
	got, err := s.Sentiment(context.Background(), "  hello ")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got != want {
		t.Fatalf("Sentiment=%+v, want %+v", got, want)
	}
}

func TestNewOpenAISentiment_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAISentiment(" ", ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

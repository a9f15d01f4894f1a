package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/models"
	"brainpulse/internal/trainer"
)

func TestLoginStoresToken(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":3,"email":"ada@example.com"}}`))
	})
	mux.HandleFunc("POST /api/training/words", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"words":[{"word":"apple","category":"food","length":5}],"metadata":{}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	user, err := c.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)

	words, err := c.FetchWords(context.Background(), trainer.FetchRequest{Count: 1, Difficulty: models.DifficultyEasy})
	require.NoError(t, err)
	assert.Equal(t, []models.Word{{Text: "apple", Category: "food", Length: 5}}, words)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestFetchWordsSendsRequest(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"words":[]}`))
	}))
	defer srv.Close()

	minLen := 4
	_, err := New(srv.URL, nil).FetchWords(context.Background(), trainer.FetchRequest{
		Count: 10, Difficulty: models.DifficultyHard, Categories: []string{"animals"}, MinLength: &minLen,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(10), got["count"])
	assert.Equal(t, "hard", got["difficulty"])
	assert.Equal(t, float64(4), got["minLength"])
	assert.NotContains(t, got, "maxLength")
}

func TestSubmitSessionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"results.score must be between 0 and 100","field":"results.score"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).SubmitSession(context.Background(), trainer.Submission{TrainingType: trainer.TrainingType})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "results.score", apiErr.Field)
}

func TestNonJSONErrorUsesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).SubmitSession(context.Background(), trainer.Submission{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

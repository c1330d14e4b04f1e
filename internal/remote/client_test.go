package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

const samplePayload = `{"todos":[
	{"id":1,"todo":"Do something nice for someone you care about","completed":false,"userId":152},
	{"id":2,"todo":"Memorize a poem","completed":true,"userId":13}
],"total":2,"skip":0,"limit":30}`

func newTestClient(url string) *Client {
	return New(url, WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{Title: "Do something nice for someone you care about"},
		{Title: "Memorize a poem", Completed: true},
	}, items)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, WithMaxTries(2), WithRetryBackoff(time.Millisecond, time.Millisecond))
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, todoerr.Is(err, todoerr.KindTransport))
	assert.Equal(t, int32(2), calls.Load())

	var te *todoerr.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.Code)
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	require.Error(t, err)

	var te *todoerr.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, todoerr.KindTransport, te.Kind)
	assert.Equal(t, http.StatusNotFound, te.Code)
	assert.Equal(t, "Invalid status code.", te.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Empty response.")
}

func TestFetch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"todos": [`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, todoerr.Is(err, todoerr.KindDecode))
}

func TestFetch_CancelledContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newTestClient(srv.URL).Fetch(ctx)
	require.Error(t, err)
	assert.True(t, todoerr.IsCancelled(err))
	assert.Empty(t, todoerr.UserMessage(err), "cancellations are not shown to users")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Item
		wantErr bool
	}{
		{
			name:  "wrapped",
			input: `{"todos":[{"todo":"a","completed":true}]}`,
			want:  []Item{{Title: "a", Completed: true}},
		},
		{
			name:  "bare array",
			input: ` [{"todo":"b"}]`,
			want:  []Item{{Title: "b"}},
		},
		{
			name:  "empty list",
			input: `{"todos":[]}`,
			want:  []Item{},
		},
		{
			name:    "missing todos",
			input:   `{"items":[]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, todoerr.Is(err, todoerr.KindDecode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, New("  ").URL())
	assert.Equal(t, "http://example.test/todos", New("http://example.test/todos").URL())
}

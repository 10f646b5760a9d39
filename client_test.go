package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON = "application/json"
	newToken        = "new-token"
)

type product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("Failed to write response: %v", err)
	}
}

func noDelay(int) time.Duration { return 0 }

func TestNew(t *testing.T) {
	client := New(Config{BaseURL: "http://example.com"})

	require.NotNil(t, client)
	assert.True(t, client.IsValid())
	assert.NoError(t, client.ValidationError())
	assert.Equal(t, "http://example.com", client.BaseURL())
	assert.False(t, client.Refreshing())
	assert.Equal(t, UserAgent(), client.cfg.DefaultHeaders.Get("User-Agent"))
}

func TestNewValidation(t *testing.T) {
	client := New(Config{})

	assert.False(t, client.IsValid())
	var apiErr *APIError
	require.True(t, errors.As(client.ValidationError(), &apiErr))
	assert.Equal(t, ErrorTypeValidation, apiErr.Type())
	assert.Contains(t, apiErr.Details(), "baseURL is required")

	client = New(Config{BaseURL: "/relative", DefaultTimeout: -time.Second})
	assert.False(t, client.IsValid())
	problems, ok := client.ValidationError().(*APIError).Details().([]string)
	require.True(t, ok)
	assert.Len(t, problems, 2)
}

func TestGetDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/1", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		writeJSON(t, w, http.StatusOK, product{ID: "1", Name: "Lamp", Price: 19.5})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	res := Get[product](context.Background(), client, "/products/1")

	require.True(t, res.OK(), "unexpected failure: %v", res.Err())
	assert.Nil(t, res.Err())
	assert.Equal(t, product{ID: "1", Name: "Lamp", Price: 19.5}, res.Value())
}

func TestPostAndPutSendJSONBody(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, method, r.Method)
				var got product
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				got.ID = "42"
				writeJSON(t, w, http.StatusCreated, got)
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL})
			var res Result[json.RawMessage]
			if method == http.MethodPost {
				res = client.Post(context.Background(), "/products", product{Name: "Desk"})
			} else {
				res = client.Put(context.Background(), "/products/42", product{Name: "Desk"})
			}

			require.True(t, res.OK())
			assert.JSONEq(t, `{"id":"42","name":"Desk","price":0}`, string(res.Value()))
		})
	}
}

func TestUnencodableBodyFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	var reported atomic.Int32
	client := New(Config{
		BaseURL:     server.URL,
		OnHTTPError: func(*APIError) { reported.Add(1) },
	})
	res := client.Post(context.Background(), "/x", make(chan int))

	require.False(t, res.OK())
	assert.Equal(t, StatusTransportFailure, res.Err().StatusCode())
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int32(1), reported.Load())
}

func TestNoContentYieldsZeroValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	res := Delete[product](context.Background(), client, "/products/1")
	require.True(t, res.OK())
	assert.Equal(t, product{}, res.Value())

	raw := client.Delete(context.Background(), "/products/1")
	require.True(t, raw.OK())
	assert.Nil(t, raw.Value())
}

func TestHTTPErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantDetails any
	}{
		{
			name:        "problem details",
			status:      http.StatusUnprocessableEntity,
			body:        `{"code":"invalid","message":"bad name","fieldErrors":{"name":["required"]}}`,
			wantDetails: &ErrorDetails{Code: "invalid", Message: "bad name", FieldErrors: map[string][]string{"name": {"required"}}},
		},
		{
			name:        "other json",
			status:      http.StatusNotFound,
			body:        `["missing"]`,
			wantDetails: []any{"missing"},
		},
		{
			name:        "plain text",
			status:      http.StatusBadGateway,
			body:        "upstream down",
			wantDetails: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL})
			res := client.Get(context.Background(), "/x")

			require.False(t, res.OK())
			assert.Equal(t, tt.status, res.Err().StatusCode())
			assert.Equal(t, HTTPErrorMessage(tt.status), res.Err().Message())
			assert.Equal(t, ErrorTypeHTTP, res.Err().Type())
			assert.Equal(t, tt.wantDetails, res.Err().Details())
		})
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var reported atomic.Int32
	client := New(Config{
		BaseURL:      server.URL,
		DefaultRetry: &RetryConfig{Count: 3, Delay: noDelay},
		OnHTTPError:  func(*APIError) { reported.Add(1) },
	})
	res := client.Get(context.Background(), "/flaky")

	require.False(t, res.OK())
	assert.Equal(t, http.StatusServiceUnavailable, res.Err().StatusCode())
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(4), reported.Load())
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{Count: 5, Delay: noDelay}})
	res := Get[map[string]string](context.Background(), client, "/x")

	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Value()["status"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetriedByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{Count: 3, Delay: noDelay}})
	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPerCallRetryOverride(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{Count: 5, Delay: noDelay}})

	res := client.Get(context.Background(), "/x", WithRetry(RetryConfig{
		Count:       2,
		ShouldRetry: func(err *APIError) bool { return err.StatusCode() == http.StatusConflict },
		Delay:       noDelay,
	}))
	require.False(t, res.OK())
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	client.Get(context.Background(), "/x", WithoutRetry())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryDelayIsHonored(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var delays []int
	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{
		Count: 2,
		Delay: func(attempt int) time.Duration {
			delays = append(delays, attempt)
			return 20 * time.Millisecond
		},
	}})

	start := time.Now()
	client.Get(context.Background(), "/x")

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, []int{0, 1}, delays)
}

func TestNegativeRetryCountFallsBack(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{Count: -1}})
	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, StatusTransportFailure, res.Err().StatusCode())
	assert.Equal(t, "Retry logic failed unexpectedly", res.Err().Message())
	assert.Equal(t, "Max retries reached without success.", res.Err().Details())
	assert.True(t, errors.Is(res.Err(), ErrRetryExhausted))
	assert.Equal(t, int32(0), calls.Load())
}

func TestHeaderPrecedence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.Header.Get("A"))
		assert.Equal(t, "X", r.Header.Get("Authorization"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, "fixed-id", r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:        server.URL,
		DefaultHeaders: http.Header{"A": {"1"}, "Content-Type": {"text/plain"}},
		TokenRefresh: &TokenRefreshConfig{
			GetAccessToken: func(context.Context) (string, error) { return "t", nil },
		},
	})
	res := client.Get(context.Background(), "/x",
		WithHeader("a", "2"),
		WithHeaders(http.Header{"Authorization": {"X"}, RequestIDHeader: {"fixed-id"}}),
	)

	assert.True(t, res.OK())
}

func TestAuthorizationHeaderInjected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL: server.URL,
		TokenRefresh: &TokenRefreshConfig{
			GetAccessToken: func(context.Context) (string, error) { return "abc", nil },
			GetAuthorizationHeader: func(token string) http.Header {
				return http.Header{"Authorization": {"Token " + token}}
			},
		},
	})
	assert.True(t, client.Get(context.Background(), "/x").OK())
}

func TestEmptyAccessTokenSendsNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL: server.URL,
		TokenRefresh: &TokenRefreshConfig{
			GetAccessToken: func(context.Context) (string, error) { return "", errors.New("no session") },
		},
	})
	assert.True(t, client.Get(context.Background(), "/x").OK())
}

func TestTimeoutYieldsRequestAborted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var reported atomic.Int32
	client := New(Config{
		BaseURL:        server.URL,
		DefaultTimeout: 50 * time.Millisecond,
		OnHTTPError:    func(*APIError) { reported.Add(1) },
	})

	start := time.Now()
	res := client.Get(context.Background(), "/slow")

	require.False(t, res.OK())
	assert.Equal(t, StatusRequestAborted, res.Err().StatusCode())
	assert.Equal(t, ErrorTypeTimeout, res.Err().Type())
	assert.True(t, errors.Is(res.Err(), ErrTimeout))
	assert.Contains(t, res.Err().Message(), "timed out")
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, int32(1), reported.Load())
}

func TestCallerDeadlineWinsOverDefaultTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(80 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultTimeout: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := client.Get(ctx, "/slow")

	assert.True(t, res.OK(), "unexpected failure: %v", res.Err())
}

func TestCallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	res := client.Get(ctx, "/hang")

	require.False(t, res.OK())
	assert.Equal(t, StatusRequestAborted, res.Err().StatusCode())
	assert.Equal(t, context.Canceled.Error(), res.Err().Message())
}

func TestCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:      server.URL,
		DefaultRetry: &RetryConfig{Count: 3, Delay: func(int) time.Duration { return time.Hour }},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	res := client.Get(ctx, "/x")

	require.False(t, res.OK())
	assert.Equal(t, StatusRequestAborted, res.Err().StatusCode())
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url})
	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, StatusTransportFailure, res.Err().StatusCode())
	assert.Equal(t, ErrorTypeTransport, res.Err().Type())
	assert.True(t, errors.Is(res.Err(), ErrTransport))
	assert.NotEmpty(t, res.Err().Details())
}

func TestMalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	res := Get[product](context.Background(), client, "/x")

	require.False(t, res.OK())
	assert.Equal(t, StatusTransportFailure, res.Err().StatusCode())
}

func TestPanicInMiddlewareIsContained(t *testing.T) {
	client := New(Config{BaseURL: "http://example.invalid"}, WithMiddleware(
		func(req *http.Request, next RoundTripper) (*http.Response, error) {
			panic("boom")
		},
	))

	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, StatusTransportFailure, res.Err().StatusCode())
	assert.Equal(t, "An unknown network error occurred", res.Err().Message())
	assert.Equal(t, "boom", res.Err().Details())
}

func TestPanicErrorInMiddleware(t *testing.T) {
	client := New(Config{BaseURL: "http://example.invalid"}, WithMiddleware(
		func(req *http.Request, next RoundTripper) (*http.Response, error) {
			panic(errors.New("exploded"))
		},
	))

	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, "exploded", res.Err().Message())
}

func TestMiddlewareOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "outer,inner", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tag := func(name string) Middleware {
		return func(req *http.Request, next RoundTripper) (*http.Response, error) {
			if prev := req.Header.Get("X-Trace"); prev != "" {
				name = prev + "," + name
			}
			req.Header.Set("X-Trace", name)
			return next.RoundTrip(req)
		}
	}

	client := New(Config{BaseURL: server.URL}, WithMiddleware(tag("outer"), tag("inner")))
	assert.True(t, client.Get(context.Background(), "/x").OK())
}

func TestLifecycleHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var (
		mu     sync.Mutex
		events []string
		ended  Result[any]
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	client := New(Config{
		BaseURL:        server.URL,
		DefaultRetry:   &RetryConfig{Count: 1, Delay: noDelay},
		OnRequestStart: func(path string) { record("start " + path) },
		OnRequestEnd: func(path string, d time.Duration, r Result[any]) {
			record("end " + path)
			ended = r
		},
		OnHTTPError: func(err *APIError) { record("error") },
	})
	res := client.Get(context.Background(), "/hooks")

	require.False(t, res.OK())
	assert.Equal(t, []string{"start /hooks", "error", "error", "end /hooks"}, events)
	assert.False(t, ended.OK())
	assert.Same(t, res.Err(), ended.Err())
}

func TestPanickingHooksDoNotBreakCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:        server.URL,
		OnRequestStart: func(string) { panic("start") },
		OnRequestEnd:   func(string, time.Duration, Result[any]) { panic("end") },
		OnHTTPError:    func(*APIError) { panic("error") },
	})
	res := client.Get(context.Background(), "/x")

	require.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.Err().StatusCode())
}

func TestRequestIDGenerator(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(RequestIDHeader))
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, DefaultRetry: &RetryConfig{Count: 1, Delay: noDelay}},
		WithRequestIDGenerator(func() string { return "req-1" }))
	client.Get(context.Background(), "/x")
	mu.Lock()
	assert.Equal(t, []string{"req-1", "req-1"}, seen)
	seen = nil
	mu.Unlock()

	client = New(Config{BaseURL: server.URL}, WithRequestIDGenerator(nil))
	client.Get(context.Background(), "/x")
	mu.Lock()
	assert.Equal(t, []string{""}, seen)
	mu.Unlock()
}

func TestIdempotentCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, product{ID: "1"})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	first := Get[product](context.Background(), client, "/p")
	second := Get[product](context.Background(), client, "/p")

	assert.Equal(t, first.OK(), second.OK())
	assert.Equal(t, first.Value(), second.Value())
}

package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-token")

	if client.accessToken != "test-token" {
		t.Errorf("expected access token 'test-token', got '%s'", client.accessToken)
	}
	if client.baseURL != baseURL {
		t.Errorf("expected base URL '%s', got '%s'", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("expected http client to be initialized")
	}
}

func TestFetchAllActivitiesPaginates(t *testing.T) {
	page1 := []Activity{
		{ID: 1, Name: "Morning Run", Distance: 10000, Type: "Run", WorkoutType: 1, KudosCount: 4},
		{ID: 2, Name: "Evening Ride", Distance: 30000, Type: "Ride"},
	}
	page2 := []Activity{
		{ID: 3, Name: "Swim", Distance: 1500, Type: "Swim"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("expected Bearer test-token, got %s", auth)
		}

		var activities []Activity
		switch r.URL.Query().Get("page") {
		case "1":
			activities = page1
		case "2":
			activities = page2
		default:
			activities = []Activity{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.Header().Set("X-RateLimit-Usage", "5,50")
		json.NewEncoder(w).Encode(activities)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-token", server.URL).
		WithRetryConfig(2, 10*time.Millisecond, 50*time.Millisecond)

	var progressCalls []FetchResult
	activities, err := client.FetchAllActivities(context.Background(), func(result FetchResult) {
		progressCalls = append(progressCalls, result)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activities) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(activities))
	}
	if activities[0].WorkoutType != 1 || activities[0].KudosCount != 4 {
		t.Errorf("workout_type/kudos_count not decoded: %+v", activities[0])
	}

	// Progress fires for each page including the final empty one.
	if len(progressCalls) != 3 {
		t.Fatalf("expected 3 progress calls, got %d", len(progressCalls))
	}
	if progressCalls[1].Page != 2 || progressCalls[1].TotalFetched != 3 {
		t.Errorf("unexpected second progress call: %+v", progressCalls[1])
	}
	if progressCalls[0].RateLimit.Limit15Min != 100 || progressCalls[0].RateLimit.Usage15Min != 5 {
		t.Errorf("rate limit headers not parsed: %+v", progressCalls[0].RateLimit)
	}
}

func TestFetchActivitiesSincePassesAfter(t *testing.T) {
	client := NewClient("test-token").
		WithRetryConfig(1, 10*time.Millisecond, 50*time.Millisecond)
	httpmock.ActivateNonDefault(client.httpClient.HTTPClient)
	defer httpmock.DeactivateAndReset()

	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var gotAfter string
	httpmock.RegisterResponder("GET", `=~athlete/activities`,
		func(req *http.Request) (*http.Response, error) {
			gotAfter = req.URL.Query().Get("after")
			return httpmock.NewJsonResponse(http.StatusOK, []Activity{})
		})

	if _, err := client.FetchActivitiesSince(context.Background(), since, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "1717200000"; gotAfter != want {
		t.Errorf("after param = %q, want %q", gotAfter, want)
	}
}

func TestFetchAllActivitiesUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("invalid-token", server.URL).
		WithRetryConfig(1, 10*time.Millisecond, 50*time.Millisecond)

	if _, err := client.FetchAllActivities(context.Background(), nil); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestFetchAllActivitiesRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.Header().Set("X-RateLimit-Usage", "100,120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-token", server.URL).
		WithRetryConfig(2, 10*time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.FetchAllActivities(ctx, nil); err == nil {
		t.Fatal("expected error once retries are exhausted")
	}
}

func TestParseRateLimitHeadersPicksRestrictive(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "200,2000")
	headers.Set("X-RateLimit-Usage", "10,100")
	headers.Set("X-ReadRateLimit-Limit", "100,1000")
	headers.Set("X-ReadRateLimit-Usage", "25,80")

	info := parseRateLimitHeaders(headers, time.Date(2024, 1, 1, 12, 3, 0, 0, time.UTC))

	if info.Limit15Min != 100 || info.LimitDaily != 1000 {
		t.Errorf("limits = %d/%d, want the lower read limits 100/1000", info.Limit15Min, info.LimitDaily)
	}
	if info.Usage15Min != 25 || info.UsageDaily != 100 {
		t.Errorf("usage = %d/%d, want the higher values 25/100", info.Usage15Min, info.UsageDaily)
	}
	if info.IsRateLimited {
		t.Error("should not be rate limited below the quota")
	}
}

func TestParseRateLimitHeadersAtQuota(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "100,1000")
	headers.Set("X-RateLimit-Usage", "100,500")

	info := parseRateLimitHeaders(headers, time.Now())
	if !info.IsRateLimited {
		t.Error("usage at the 15-minute quota must report rate limited")
	}
	if info.RecommendedWait <= 0 {
		t.Error("expected a positive recommended wait")
	}
}

func TestTimeUntilNext15MinWindow(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), 15*time.Minute + 2*time.Second},
		{time.Date(2024, 1, 1, 10, 14, 30, 0, time.UTC), 30*time.Second + 2*time.Second},
		{time.Date(2024, 1, 1, 10, 50, 0, 0, time.UTC), 10*time.Minute + 2*time.Second},
	}
	for _, tt := range tests {
		if got := timeUntilNext15MinWindow(tt.now); got != tt.want {
			t.Errorf("timeUntilNext15MinWindow(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

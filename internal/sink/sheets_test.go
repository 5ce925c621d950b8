package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/efreitasn/alertbridge/internal/clock"
)

func newTestSheetsService(t *testing.T, h http.Handler) *sheets.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	return svc
}

func TestSheetsSink_AppendsRawRow(t *testing.T) {
	var (
		gotPath  string
		gotInput string
		gotBody  struct {
			Values [][]string `json:"values"`
		}
	)
	svc := newTestSheetsService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123"}`))
	}))

	s := NewSheetsSink(svc, "sheet-123", "", clock.NewFake(testTime))
	if err := s.Record(context.Background(), testOrder()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if !strings.Contains(gotPath, "/spreadsheets/sheet-123/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotInput != "RAW" {
		t.Errorf("valueInputOption = %q, want RAW", gotInput)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != len(Header) {
		t.Fatalf("unexpected values: %v", gotBody.Values)
	}
	if gotBody.Values[0][1] != "123456" {
		t.Errorf("id cell = %q", gotBody.Values[0][1])
	}
}

func TestSheetsSink_APIErrorIsReturned(t *testing.T) {
	svc := newTestSheetsService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	}))

	s := NewSheetsSink(svc, "sheet-123", "Orders!A1", clock.NewFake(testTime))
	if err := s.Record(context.Background(), testOrder()); err == nil {
		t.Fatal("expected error from 403 response")
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	_, err := NewSheetsService(context.Background(), "/nonexistent/service_account.json")
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

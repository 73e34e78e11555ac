package marks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := api.New(api.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return New(client)
}

func TestRecentDecodesMarks(t *testing.T) {
	var gotPath, gotLimit string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"success":true,"data":[
			{"id_marcacion":1,"id_tripulante":"C-1","fecha":"2026-08-31","hora":"08:15","tipo":"entrada","evento":"Regata","lugar":"Muelle 4"},
			{"id_marcacion":2,"id_tripulante":"C-1","fecha":"2026-08-31","hora":"17:02","tipo":"salida","evento":"Regata"}
		]}`))
	}))

	marks, err := svc.Recent(context.Background(), 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if gotPath != "/marcaciones/recent" || gotLimit != "50" {
		t.Fatalf("request = %s?limit=%s", gotPath, gotLimit)
	}
	if len(marks) != 2 {
		t.Fatalf("got %d marks", len(marks))
	}
	if marks[0].Kind != attendance.MarkEntry || marks[1].Kind != attendance.MarkExit {
		t.Fatalf("kinds = %v, %v", marks[0].Kind, marks[1].Kind)
	}
	if marks[0].EventName != "Regata" || marks[0].Time != "08:15" {
		t.Fatalf("first mark = %+v", marks[0])
	}
}

func TestByEventAndByCrewPaths(t *testing.T) {
	var paths []string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"success":true,"data":[]}`))
	}))

	if _, err := svc.ByEvent(context.Background(), 7); err != nil {
		t.Fatalf("ByEvent: %v", err)
	}
	if _, err := svc.ByCrew(context.Background(), "C-9", 0); err != nil {
		t.Fatalf("ByCrew: %v", err)
	}
	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatalf("Today: %v", err)
	}

	want := []string{"/marcaciones/event/7", "/marcaciones/tripulante/C-9", "/marcaciones/today"}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("path %d = %q, want %q", i, paths[i], p)
		}
	}
}

func TestNullDataYieldsEmptySlice(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":null}`))
	}))

	marks, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if marks == nil || len(marks) != 0 {
		t.Fatalf("marks = %#v, want empty non-nil slice", marks)
	}
}

package crewdir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewmark/attendance-client/internal/api"
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

func TestSearchDecodesMembers(t *testing.T) {
	var gotQuery string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"success":true,"data":[
			{"id_tripulante":"C-1","nombres":"Ana","apellidos":"Mora","cargo":"Capitana","activo":true,"procesado":true},
			{"id_tripulante":"C-2","nombres":"Luis","apellidos":"Paz","activo":false}
		]}`))
	}))

	members, err := svc.Search(context.Background(), "mora")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "mora" {
		t.Fatalf("q = %q", gotQuery)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members", len(members))
	}
	if members[0].FullName() != "Ana Mora" || !members[0].Active {
		t.Fatalf("first member = %+v", members[0])
	}
	if members[1].Active {
		t.Fatal("inactive member decoded as active")
	}
}

func TestGetUnknownMemberIs404(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"tripulante no encontrado"}`))
	}))

	_, err := svc.Get(context.Background(), "C-404")
	if !api.IsNotFound(err) {
		t.Fatalf("err = %v, want 404 classification", err)
	}
}

package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func BenchmarkHandleUpdate(b *testing.B) {
	srv := buildTestServer(b)
	user := seedUser(b, srv, 50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/stats/update", nil)
		req.Header.Set("X-User-Id", user.ID)
		rec := httptest.NewRecorder()

		srv.handleUpdate(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

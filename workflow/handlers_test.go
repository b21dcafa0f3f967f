package workflow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/gin-gonic/gin"
)

func TestRespondErrorCarriesCorrelationId(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(utils.SetCorrelationIdInContext(req.Context(), "cid-123"))

	respondError(c, models.NewValidationError("bad input"))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("body = %s: %v", recorder.Body.String(), err)
	}
	if string(body["correlation_id"]) != `"cid-123"` {
		t.Fatalf("correlation_id = %s", body["correlation_id"])
	}
	if _, ok := body["error"]; !ok {
		t.Fatal("error payload is missing")
	}
}

func TestStatusForMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("x"), http.StatusBadRequest},
		{models.NewUnmappedProductError("ext"), http.StatusUnprocessableEntity},
		{models.NewMissingCostError(1), http.StatusUnprocessableEntity},
		{models.NewMigrationBlockedError("locked"), http.StatusConflict},
		{models.NewExternalSourceError(nil), http.StatusBadGateway},
		{models.NewStorageError(nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

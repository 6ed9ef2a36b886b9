package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestTracker_RegisterAll(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	var mu sync.Mutex
	var registrations []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		mu.Lock()
		registrations = append(registrations, req)
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	dbMock.ExpectQuery("SELECT address, COALESCE\\(tracking_state, ''\\) FROM wallets").
		WillReturnRows(sqlmock.NewRows([]string{"address", "tracking_state"}).
			AddRow("EQfresh", "").
			AddRow("EQtracked", `{"lastProcessedLt":"31000000"}`))

	tracker := NewTracker(db, testClient(server.URL))
	assert.NoError(t, tracker.RegisterAll(context.Background()))

	assert.Len(t, registrations, 2)
	assert.Equal(t, "EQfresh", registrations[0]["address"])
	assert.Equal(t, "current", registrations[0]["trackingState"])
	assert.Equal(t, "EQtracked", registrations[1]["address"])
	state := registrations[1]["trackingState"].(map[string]any)
	assert.Equal(t, "31000000", state["lastProcessedLt"])
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestTracker_RegisterAllPropagatesGatewayFailure(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	dbMock.ExpectQuery("SELECT address, COALESCE\\(tracking_state, ''\\) FROM wallets").
		WillReturnRows(sqlmock.NewRows([]string{"address", "tracking_state"}).
			AddRow("EQwallet", ""))

	tracker := NewTracker(db, testClient(server.URL))
	assert.ErrorIs(t, tracker.RegisterAll(context.Background()), ErrGateway)
}

func TestSaveTrackingState(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	dbMock.ExpectExec("UPDATE wallets SET tracking_state = \\$1 WHERE address = \\$2").
		WithArgs(`{"lastProcessedLt":"31000000"}`, "EQwallet").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = SaveTrackingState(context.Background(), db, "EQwallet", `{"lastProcessedLt":"31000000"}`)
	assert.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

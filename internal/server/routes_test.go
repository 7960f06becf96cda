package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, healthy bool) (*Server, *actor.ActorSystem) {
	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.ActorHealthRequest); ok {
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		}
	}))
	reg := registry.New()
	reg.Register(7)
	require.NoError(t, reg.SetReady(7))
	_, _, err := reg.UpsertAttribute(7, registry.AttributeRecord{ClassID: 48, Label: "Sensor", Value: zwave.Bool(true)})
	require.NoError(t, err)
	return &Server{rootContext: as.Root, masterActor: pid, registry: reg}, as
}

func TestHealthCheck(t *testing.T) {

	for _, healthy := range []bool{true, false} {
		s, as := newTestServer(t, healthy)
		rec := httptest.NewRecorder()
		s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

		var body healthCheckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		if healthy {
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "OK", body.Status)
		} else {
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "FAIL", body.Status)
		}
		as.Shutdown()
	}
}

func TestDevices(t *testing.T) {

	s, as := newTestServer(t, true)
	defer as.Shutdown()

	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"nodeId":7,"ready":true,"identity":{"manufacturer":"","manufacturerId":"","product":"","productType":"","productId":"","type":"","name":"","loc":""},
		"attributes":[{"classId":48,"instance":0,"index":0,"label":"Sensor","value":true,"revision":1}]}]`, rec.Body.String())
}

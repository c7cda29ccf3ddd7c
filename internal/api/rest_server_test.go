package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Foghrye4/CubicChunks/internal/world"
)

type stubWorld struct {
	stats world.Stats
}

func (s *stubWorld) Stats() world.Stats                         { return s.stats }
func (s *stubWorld) ViewDistances() (int, int)                  { return 8, 6 }

type stubCache struct{}

func (stubCache) LoadedCubes() int   { return 11 }
func (stubCache) LoadedColumns() int { return 4 }

func doRequest(t *testing.T, rs *RestServer, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rs.Router().ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthEndpoint(t *testing.T) {
	rs := NewRestServer(Config{})
	w, body := doRequest(t, rs, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestCubeMapStatsEndpoint(t *testing.T) {
	rs := NewRestServer(Config{
		World: &stubWorld{stats: world.Stats{Players: 3, CubeWatchers: 343}},
		Cache: stubCache{},
	})
	w, body := doRequest(t, rs, "/debug/cubemap")

	assert.Equal(t, http.StatusOK, w.Code)

	scheduler := body["scheduler"].(map[string]interface{})
	assert.Equal(t, float64(3), scheduler["players"])
	assert.Equal(t, float64(343), scheduler["cube_watchers"])

	viewDistance := body["view_distance"].(map[string]interface{})
	assert.Equal(t, float64(8), viewDistance["horizontal"])
	assert.Equal(t, float64(6), viewDistance["vertical"])

	cache := body["cache"].(map[string]interface{})
	assert.Equal(t, float64(11), cache["loaded_cubes"])
}

func TestCubeMapStatsWithoutWorld(t *testing.T) {
	rs := NewRestServer(Config{})
	w, _ := doRequest(t, rs, "/debug/cubemap")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSystemStatsEndpoint(t *testing.T) {
	rs := NewRestServer(Config{})
	w, body := doRequest(t, rs, "/debug/system")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "memory_mb")
	assert.Contains(t, body, "goroutines")
}

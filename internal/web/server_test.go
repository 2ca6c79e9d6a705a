package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/adaptive-vault/aev/internal/types"
)

type stubEngine struct{}

func (stubEngine) EpochSnapshot() types.Epoch {
	return types.Epoch{Index: 3, State: types.EpochActive, EndTime: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
}

func (stubEngine) TrancheSnapshot() types.TrancheState {
	return types.TrancheState{SeniorAssets: sdkmath.NewInt(500000), JuniorAssets: sdkmath.NewInt(250000)}
}

func (stubEngine) FeeSnapshot() types.FeeRates {
	return types.FeeRates{ManagementBps: 50, SeniorCouponBps: 50}
}

func (stubEngine) VolatilitySnapshot() types.VolatilityState {
	return types.VolatilityState{CurrentBps: 3000, HistoricalBps: 2800}
}

func (stubEngine) ShieldSnapshot() (types.ShieldPoolState, []types.ShieldPolicy) {
	return types.ShieldPoolState{TotalReserves: sdkmath.NewInt(750)}, nil
}

func (stubEngine) TeleportSnapshot() (types.TeleportPoolState, []types.YieldNote) {
	return types.TeleportPoolState{JuniorYieldBuffer: sdkmath.NewInt(1500), TotalOutstanding: sdkmath.ZeroInt(), TotalAdvanced: sdkmath.ZeroInt(), AvailableAdvance: sdkmath.ZeroInt()}, nil
}

func (stubEngine) LadderSnapshot() []types.LadderRungSnapshot { return nil }

func (stubEngine) RecentSettlements(limit int) []types.SettlementSnapshot {
	return []types.SettlementSnapshot{{SettlementNumber: 1, EpochIndex: 2, RealizedReturnBps: 133,
		SeniorBefore: sdkmath.ZeroInt(), JuniorBefore: sdkmath.ZeroInt(),
		SeniorAfter: sdkmath.ZeroInt(), JuniorAfter: sdkmath.ZeroInt(),
		PnL: sdkmath.ZeroInt(), SeniorCoupon: sdkmath.ZeroInt(), SpilloverToSenior: sdkmath.ZeroInt(),
		ShieldPayout: sdkmath.ZeroInt(), ShieldReserves: sdkmath.ZeroInt(),
		TeleportOutstanding: sdkmath.ZeroInt(), TeleportBuffer: sdkmath.ZeroInt()}}
}

func doGet(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	server := NewWebServer("0", stubEngine{})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := doGet(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "OK", body["status"])

	engineStatus := body["engine_status"].(map[string]interface{})
	require.Equal(t, false, engineStatus["database_configured"])
	require.Equal(t, float64(3), engineStatus["current_epoch"])
}

func TestSnapshotEndpoints(t *testing.T) {
	t.Run("tranches_serve_amounts_as_strings", func(t *testing.T) {
		rec := doGet(t, "/api/tranches")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "500000", body["senior_assets"])
		require.Equal(t, "250000", body["junior_assets"])
	})

	t.Run("shield_wraps_pool_and_policies", func(t *testing.T) {
		rec := doGet(t, "/api/shield")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		pool := body["pool"].(map[string]interface{})
		require.Equal(t, "750", pool["total_reserves"])
	})

	t.Run("settlements_fall_back_to_memory_without_db", func(t *testing.T) {
		rec := doGet(t, "/api/settlements?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, float64(1), body["count"])
		require.Equal(t, float64(5), body["limit"])
	})

	t.Run("parameters_404_without_db", func(t *testing.T) {
		rec := doGet(t, "/api/parameters")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

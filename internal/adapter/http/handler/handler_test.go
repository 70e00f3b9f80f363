package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"note-issuance-engine/internal/adapter/http/middleware"
	"note-issuance-engine/internal/adapter/storage/memory"
	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	operatorKey    = "ops-key"
	operatorSecret = "ops-secret"
	granterKey     = "quest-key"
	granterSecret  = "quest-secret"
	reserveAccount = "reserve"
)

// apiHarness serves the full router over the memory store.
type apiHarness struct {
	router *gin.Engine
	config ports.ConfigService
	ledger *memory.AssetLedger
	tokens *service.JWTTokenService
	sig    *service.HMACSignatureService
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	repos := store.Repositories()
	registry := memory.NewTokenRegistry()
	ledger := memory.NewAssetLedger(map[string]int64{reserveAccount: 5000})
	notifier := service.NewNotifier(log, service.NewJournalSink(repos.Events))

	decomposer := service.NewDecomposer(repos.Denominations)
	require.NoError(t, decomposer.Rebuild(context.Background()))

	config := service.NewConfigService(repos, decomposer, notifier, log)
	issuance := service.NewIssuanceService(repos,
		service.NewRaritySelector(repos.Rarities, service.NewCryptoEntropy()),
		registry, service.SystemClock{}, notifier, log)
	rewards := service.NewRewardService(repos, nil, decomposer, issuance, log)
	redemption := service.NewRedemptionService(repos, registry, ledger, service.SystemClock{}, notifier,
		service.SettlementOptions{
			ReserveAccount:  reserveAccount,
			MintReason:      "shortfall",
			TrustedGranters: []string{"quest-engine"},
		}, log)

	creds, err := service.NewStaticCredentialStore(
		ports.Credential{AccessKey: operatorKey, Secret: operatorSecret, Account: "ops", Role: ports.RoleOperator},
		ports.Credential{AccessKey: granterKey, Secret: granterSecret, Account: "quest-engine", Role: ports.RoleGranter},
	)
	require.NoError(t, err)

	h := &apiHarness{
		config: config,
		ledger: ledger,
		tokens: service.NewJWTTokenService("handler-test-secret", time.Hour, "test"),
		sig:    service.NewHMACSignatureService(),
	}
	h.router = SetupRouter(RouterDeps{
		Issuance:       issuance,
		Rewards:        rewards,
		Redemption:     redemption,
		Notes:          service.NewNoteService(repos, service.NewJSONMetadataRenderer()),
		Config:         config,
		Reporting:      service.NewReportingService(repos, ledger, reserveAccount),
		Reserve:        ledger,
		ReserveAccount: reserveAccount,
		Credentials:    creds,
		SigSvc:         h.sig,
		NonceStore:     memory.NewNonceStore(),
		TokenSvc:       h.tokens,
		HealthCheckers: []ports.HealthChecker{store},
		Logger:         log,
	})
	return h
}

// seed configures series AA, three denominations and a four-tier rarity set.
func (h *apiHarness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := h.config.SetSeries(ctx, domain.Series{ID: "AA", Name: "First Issue", BasePath: "ipfs://aa", Active: true})
	require.NoError(t, err)
	for _, d := range []domain.Denomination{
		{ID: 1, Name: "Bronze", Value: 50, MediaPath: "bronze.png", Active: true},
		{ID: 2, Name: "Silver", Value: 250, MediaPath: "silver.png", SerialOffset: 100000, Active: true},
		{ID: 3, Name: "Gold", Value: 1000, MediaPath: "gold.png", SerialOffset: 200000, Active: true},
	} {
		_, err := h.config.SetDenomination(ctx, d)
		require.NoError(t, err)
	}
	require.NoError(t, h.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, Name: "Common", WeightBps: 7000, BonusBps: 10000},
		{Level: 2, Name: "Uncommon", WeightBps: 2000, BonusBps: 10500},
		{Level: 3, Name: "Rare", WeightBps: 900, BonusBps: 11000},
		{Level: 4, Name: "Legendary", WeightBps: 100, BonusBps: 15000},
	}))
}

func (h *apiHarness) signed(method, path, key, secret string, body any) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	ts := time.Now().Unix()
	nonce := uuid.NewString()
	canonical := h.sig.BuildCanonicalString(method, path, ts, nonce, string(raw))

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAccessKey, key)
	req.Header.Set(middleware.HeaderSignature, h.sig.Sign(secret, canonical))
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) operator(method, path string, body any) *httptest.ResponseRecorder {
	return h.signed(method, path, operatorKey, operatorSecret, body)
}

func (h *apiHarness) granter(method, path string, body any) *httptest.ResponseRecorder {
	return h.signed(method, path, granterKey, granterSecret, body)
}

func (h *apiHarness) holder(t *testing.T, method, path, account string) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := h.tokens.Generate(account)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func dataList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var resp struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.ErrorCode
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	w := h.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"memory":{"status":"healthy"}`)
}

type downChecker struct{}

func (downChecker) Ping(context.Context) error { return assert.AnError }
func (downChecker) Name() string               { return "redis" }

func TestHealthCheck_Degraded(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck(downChecker{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestAPIDocs(t *testing.T) {
	h := newHarness(t)

	w := h.get("/swagger/spec")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/notes/{token_id}/redeem:")
	assert.Contains(t, w.Body.String(), "/api/v1/admin/holder-tokens:")

	w = h.get("/swagger")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

// --- Operator surface ---

func TestAdmin_ConfigureIssueAndRedeem(t *testing.T) {
	h := newHarness(t)

	w := h.operator(http.MethodPut, "/api/v1/admin/series/AA", map[string]any{
		"name": "First Issue", "base_path": "ipfs://aa", "max_supply": 10, "active": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "AA", data(t, w)["id"])

	w = h.operator(http.MethodPut, "/api/v1/admin/denominations/3", map[string]any{
		"name": "Gold", "value": 1000, "media_path": "gold.png", "serial_offset": 200000, "active": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.operator(http.MethodPut, "/api/v1/admin/rarity", map[string]any{
		"tiers": []map[string]any{
			{"level": 1, "name": "Common", "weight_bps": 9000, "bonus_bps": 10000},
			{"level": 3, "name": "Rare", "weight_bps": 1000, "bonus_bps": 11000},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.operator(http.MethodPost, "/api/v1/admin/issue", map[string]any{
		"to": "alice", "denomination_id": 3, "series_id": "AA", "rarity": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := data(t, w)
	assert.Equal(t, float64(1), note["token_id"])
	assert.Equal(t, float64(200001), note["serial"])
	assert.Equal(t, float64(3), note["rarity"])

	w = h.get("/api/v1/notes/1")
	require.Equal(t, http.StatusOK, w.Code)
	attrs := data(t, w)
	assert.Equal(t, float64(1100), attrs["redemption_value"])
	assert.Equal(t, "ipfs://aa/gold.png", attrs["media_path"])

	w = h.get("/api/v1/notes/1/metadata")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"AA Gold #200001"`)

	w = h.holder(t, http.MethodPost, "/api/v1/notes/1/redeem", "bob")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "RDM_002", errCode(t, w))

	w = h.holder(t, http.MethodPost, "/api/v1/notes/1/redeem", "alice")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	st := data(t, w)
	assert.Equal(t, "SUCCESS", st["status"])
	assert.Equal(t, float64(1100), st["reserve_paid"])

	w = h.get("/api/v1/notes/1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RDM_001", errCode(t, w))

	w = h.operator(http.MethodGet, "/api/v1/admin/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3900), data(t, w)["reserve_balance"])

	w = h.operator(http.MethodGet, "/api/v1/admin/settlements?status=SUCCESS", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataList(t, w), 1)
}

func TestAdmin_IssueErrors(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	_, err := h.config.SetSeries(context.Background(), domain.Series{ID: "AA", MaxSupply: 1, Active: true})
	require.NoError(t, err)

	w := h.operator(http.MethodPost, "/api/v1/admin/issue/batch", map[string]any{
		"to": "alice", "denomination_id": 1, "series_id": "AA", "count": 2,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ISS_005", errCode(t, w))

	w = h.operator(http.MethodPost, "/api/v1/admin/issue", map[string]any{
		"to": "alice", "denomination_id": 1, "series_id": "ZZ",
	})
	assert.Equal(t, "ISS_001", errCode(t, w))
}

func TestAdmin_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"lowercase series code", http.MethodPut, "/api/v1/admin/series/aa", map[string]any{"active": true}},
		{"bad base path", http.MethodPut, "/api/v1/admin/series/AA", map[string]any{"base_path": "file:///etc"}},
		{"missing recipient", http.MethodPost, "/api/v1/admin/issue", map[string]any{"series_id": "AA"}},
		{"zero batch", http.MethodPost, "/api/v1/admin/issue/batch", map[string]any{"to": "a", "series_id": "AA"}},
		{"unknown status", http.MethodGet, "/api/v1/admin/settlements?status=LOST", nil},
		{"bad settlement id", http.MethodPost, "/api/v1/admin/settlements/not-a-uuid/retry", nil},
		{"empty settings", http.MethodPut, "/api/v1/admin/reward-settings", map[string]any{}},
		{"zero deposit", http.MethodPost, "/api/v1/admin/reserve/deposit", map[string]any{"amount": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.operator(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "CFG_000", errCode(t, w))
		})
	}
}

func TestAdmin_RarityWeightSum(t *testing.T) {
	h := newHarness(t)

	w := h.operator(http.MethodPut, "/api/v1/admin/rarity", map[string]any{
		"tiers": []map[string]any{{"level": 1, "weight_bps": 9900, "bonus_bps": 10000}},
	})
	assert.Equal(t, "CFG_001", errCode(t, w))
}

func TestAdmin_SerialsAndCorrection(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	w := h.operator(http.MethodPut, "/api/v1/admin/serials", map[string]any{
		"series_id": "AA", "denomination_id": 2, "value": 41,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.operator(http.MethodPost, "/api/v1/admin/issue", map[string]any{
		"to": "alice", "denomination_id": 2, "series_id": "AA", "rarity": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(100042), data(t, w)["serial"])

	w = h.operator(http.MethodPut, "/api/v1/admin/notes/1/rarity", map[string]any{"rarity": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(4), data(t, w)["rarity"])
}

func TestAdmin_DepositAndRetryNotFound(t *testing.T) {
	h := newHarness(t)

	w := h.operator(http.MethodPost, "/api/v1/admin/reserve/deposit", map[string]any{"amount": 250})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(5250), data(t, w)["balance"])

	w = h.operator(http.MethodPost, "/api/v1/admin/settlements/"+uuid.NewString()+"/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RDM_005", errCode(t, w))
}

func TestAdmin_HolderToken(t *testing.T) {
	h := newHarness(t)

	w := h.operator(http.MethodPost, "/api/v1/admin/holder-tokens", map[string]any{"account": "alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	token, _ := data(t, w)["token"].(string)
	claims, err := h.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Account)
}

func TestAdmin_RejectsGranterKey(t *testing.T) {
	h := newHarness(t)

	w := h.granter(http.MethodGet, "/api/v1/admin/report", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SEC_006", errCode(t, w))
}

// --- Granter surface ---

func (h *apiHarness) enableRewards(t *testing.T) {
	t.Helper()
	w := h.operator(http.MethodPut, "/api/v1/admin/reward-tiers", map[string]any{
		"ids": []uint32{10, 20, 30}, "values": []int64{2300, 2310, 50},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.operator(http.MethodPut, "/api/v1/admin/reward-settings", map[string]any{
		"default_series_id": "AA", "enabled": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRewards_GrantFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	h.enableRewards(t)

	w := h.granter(http.MethodGet, "/api/v1/rewards/tiers/10/preview", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2300), data(t, w)["target"])

	w = h.granter(http.MethodPost, "/api/v1/rewards/grant", map[string]any{
		"to": "alice", "tier_id": 10, "reference_id": "quest-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	notes := data(t, w)["notes"].([]any)
	assert.Len(t, notes, 4)

	// Same reference returns the original grant.
	w = h.granter(http.MethodPost, "/api/v1/rewards/grant", map[string]any{
		"to": "alice", "tier_id": 10, "reference_id": "quest-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, data(t, w)["notes"].([]any), 4)

	w = h.granter(http.MethodPost, "/api/v1/rewards/grant", map[string]any{"to": "alice", "tier_id": 20})
	assert.Equal(t, "RWD_003", errCode(t, w))

	first := notes[0].(map[string]any)
	w = h.granter(http.MethodPost, "/api/v1/rewards/redeem", map[string]any{
		"holder": "alice", "token_id": first["token_id"],
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "quest-engine", data(t, w)["granter"])
}

func TestRewards_Capacity(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	h.enableRewards(t)

	w := h.granter(http.MethodGet, "/api/v1/rewards/tiers/10/capacity", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := data(t, w)
	assert.Equal(t, true, body["can_grant"])
	assert.Equal(t, true, body["unbounded"])
	assert.Equal(t, float64(-1), body["remaining"])

	w = h.operator(http.MethodPut, "/api/v1/admin/reward-supply/3", map[string]any{"limit": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.granter(http.MethodGet, "/api/v1/rewards/tiers/10/capacity", nil)
	body = data(t, w)
	assert.Equal(t, false, body["unbounded"])
	assert.Equal(t, float64(2), body["remaining"])

	w = h.granter(http.MethodGet, "/api/v1/rewards/tiers/99/capacity", nil)
	assert.Equal(t, "RWD_001", errCode(t, w))
}

func TestRewards_GrantBatch(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	h.enableRewards(t)

	w := h.granter(http.MethodPost, "/api/v1/rewards/grant/batch", map[string]any{
		"recipients": []string{"alice", "bob"}, "tier_ids": []uint32{10, 30},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, dataList(t, w), 2)

	w = h.granter(http.MethodPost, "/api/v1/rewards/grant/batch", map[string]any{
		"recipients": []string{"alice"}, "tier_ids": []uint32{10, 30},
	})
	assert.Equal(t, "CFG_002", errCode(t, w))
}

func TestRewards_RejectsOperatorKey(t *testing.T) {
	h := newHarness(t)

	w := h.operator(http.MethodPost, "/api/v1/rewards/grant", map[string]any{"to": "alice", "tier_id": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SEC_006", errCode(t, w))
}

// --- Holder surface ---

func TestRedeem_RequiresBearerToken(t *testing.T) {
	h := newHarness(t)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/notes/1/redeem", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SEC_005", errCode(t, w))
}

func TestNotes_BadTokenID(t *testing.T) {
	h := newHarness(t)

	w := h.get("/api/v1/notes/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.get("/api/v1/notes/0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotes_MetadataWithoutRenderer(t *testing.T) {
	store := memory.NewStore()
	notes := NewNoteHandler(service.NewNoteService(store.Repositories(), nil), nil)

	r := gin.New()
	r.GET("/notes/:token_id/metadata", notes.Metadata)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notes/1/metadata", nil))

	assert.Equal(t, "SYS_002", errCode(t, w))
}

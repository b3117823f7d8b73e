package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"crashvault/core/state"
	"crashvault/crypto"
	"crashvault/native/crash"
	"crashvault/storage"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*httptest.Server, *crash.Engine, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := crash.NewEngine()
	engine.SetState(manager)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	admin := addrOf(0xAA)
	vault := addrOf(0xBB)
	treasury := addrOf(0xCC)
	require.NoError(t, engine.Initialize(admin, vault, treasury, 500))

	server := NewServer(engine, slog.Default(), testAdminToken, 100_000)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, engine, manager
}

func addrOf(fill byte) crash.Address {
	var addr crash.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func walletString(addr crash.Address) string {
	return crypto.NewAddress(append([]byte(nil), addr[:]...)).String()
}

func doJSON(t *testing.T, method, url string, body interface{}, token string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	out := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var out string
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := map[string]interface{}{"multiplier": 250, "name": "r", "createdAt": 1}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rounds", body, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rounds", body, "wrong-token")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rounds", body, testAdminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSettlementFlowOverHTTP(t *testing.T) {
	ts, _, manager := newTestServer(t)
	player := addrOf(0x01)
	wallet := walletString(player)

	// Genesis mints to the admin; the operator funds the wallet from there.
	require.NoError(t, manager.FundsMint(addrOf(0xAA), 20_000))
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/wallets/fund",
		map[string]interface{}{"wallet": wallet, "amount": 20_000}, testAdminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/users",
		map[string]string{"wallet": wallet}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/deposit",
		map[string]interface{}{"wallet": wallet, "amount": 10_000}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, result := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rounds",
		map[string]interface{}{"multiplier": 250, "name": "evening run", "createdAt": 1234},
		testAdminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	roundID := rawString(t, result["roundId"])

	resp, result = doJSON(t, http.MethodPost, ts.URL+"/v1/bets",
		map[string]interface{}{"wallet": wallet, "roundId": roundID, "amount": 1_000}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	betID := rawString(t, result["betId"])

	// 5% tax skimmed into the treasury at stake time.
	resp, result = doJSON(t, http.MethodGet, ts.URL+"/v1/balances", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "9950", string(result["vault"]))
	require.Equal(t, "50", string(result["treasury"]))

	resp, result = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/v1/admin/rounds/%d/resolve", ts.URL, 1234),
		map[string]interface{}{"crashed": false, "bets": []string{betID}},
		testAdminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", string(result["settled"]))

	resp, result = doJSON(t, http.MethodPost, ts.URL+"/v1/bets/"+betID+"/claim",
		map[string]string{"wallet": wallet}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "2375", string(result["payout"]))

	resp, result = doJSON(t, http.MethodGet, ts.URL+"/v1/users/"+wallet, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "11375", string(result["balance"]))

	// A second claim must not double credit.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/bets/"+betID+"/claim",
		map[string]string{"wallet": wallet}, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListRoundsOverHTTP(t *testing.T) {
	ts, _, _ := newTestServer(t)
	for i := 0; i < 5; i++ {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rounds",
			map[string]interface{}{
				"multiplier": 200,
				"name":       fmt.Sprintf("round-%d", i),
				"createdAt":  1000 + i,
			}, testAdminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, result := doJSON(t, http.MethodGet, ts.URL+"/v1/rounds?offset=3&limit=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "5", string(result["total"]))

	var rounds []map[string]interface{}
	require.NoError(t, json.Unmarshal(result["rounds"], &rounds))
	require.Len(t, rounds, 2)
	require.Equal(t, "round-3", rounds[0]["name"])
	require.Equal(t, "round-4", rounds[1]["name"])
}

func TestGetRoundNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/rounds/999", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadWalletRejected(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/users",
		map[string]string{"wallet": "not-an-address"}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"predictsol/internal/oracle"
)

func TestOracleQuestionVoting(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, solana.NewWallet().PrivateKey)

	w := s.do(t, http.MethodPost, "/api/oracle/questions", token, map[string]interface{}{
		"text":            "Will it snow?",
		"reveal_end_time": now - 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/oracle/questions", token, map[string]interface{}{
		"text":            "Will it snow?",
		"reveal_end_time": now + 100,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Address     string `json:"address"`
		PayoutVault string `json:"payout_vault"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.PayoutVault)

	path := "/api/oracle/questions/" + created.Address
	w = s.do(t, http.MethodPost, path+"/votes", token, map[string]interface{}{"option": 3, "weight": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path+"/votes", token, map[string]interface{}{"option": 1, "weight": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var q oracle.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Equal(t, uint64(5), q.VotesOption1)
	require.Zero(t, q.VotesOption2)
	require.False(t, q.Finalized)

	w = s.do(t, http.MethodGet, "/api/oracle/questions/missing", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

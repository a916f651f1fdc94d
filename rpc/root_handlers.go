package rpc

import (
	"encoding/hex"
	"net/http"

	"lockvault/native/lockup"
)

type rootEscrowResult struct {
	ID                    string `json:"id"`
	Token                 string `json:"token"`
	Creator               string `json:"creator"`
	Base                  string `json:"base"`
	Version               uint64 `json:"version"`
	Root                  string `json:"root"`
	MaxClaimAmount        uint64 `json:"maxClaimAmount"`
	MaxEscrow             uint64 `json:"maxEscrow"`
	TotalFundedAmount     uint64 `json:"totalFundedAmount"`
	TotalEscrowCreated    uint64 `json:"totalEscrowCreated"`
	TotalDistributeAmount uint64 `json:"totalDistributeAmount"`
	CreatedAt             uint64 `json:"createdAt"`
}

func newRootEscrowResult(r *lockup.RootEscrow) rootEscrowResult {
	return rootEscrowResult{
		ID:                    hex.EncodeToString(r.ID[:]),
		Token:                 r.Token,
		Creator:               hex.EncodeToString(r.Creator[:]),
		Base:                  hex.EncodeToString(r.Base[:]),
		Version:               r.Version,
		Root:                  hex.EncodeToString(r.Root[:]),
		MaxClaimAmount:        r.MaxClaimAmount,
		MaxEscrow:             r.MaxEscrow,
		TotalFundedAmount:     r.TotalFundedAmount,
		TotalEscrowCreated:    r.TotalEscrowCreated,
		TotalDistributeAmount: r.TotalDistributeAmount,
		CreatedAt:             r.CreatedAt,
	}
}

type createRootParams struct {
	Creator        string `json:"creator"`
	Token          string `json:"token"`
	Base           string `json:"base"`
	Version        uint64 `json:"version"`
	Root           string `json:"root"`
	MaxClaimAmount uint64 `json:"maxClaimAmount"`
	MaxEscrow      uint64 `json:"maxEscrow"`
}

func (s *Server) handleCreateRoot(w http.ResponseWriter, req *RPCRequest) {
	var params createRootParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	base, err := parseHash(params.Base)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	root, err := parseHash(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	pool, err := s.engine.CreateRootEscrow(creator, params.Token, base, params.Version, root, params.MaxClaimAmount, params.MaxEscrow)
	s.metrics.ObserveOperation("lock_createRoot", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("root escrow created", "id", hex.EncodeToString(pool.ID[:]), "version", pool.Version)
	writeResult(w, req.ID, newRootEscrowResult(pool))
}

type fundRootParams struct {
	ID        string `json:"id"`
	Payer     string `json:"payer"`
	MaxAmount uint64 `json:"maxAmount"`
}

type fundRootResult struct {
	ID           string `json:"id"`
	FundedAmount uint64 `json:"fundedAmount"`
}

func (s *Server) handleFundRoot(w http.ResponseWriter, req *RPCRequest) {
	var params fundRootParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	funded, err := s.engine.FundRootEscrow(id, payer, params.MaxAmount)
	s.metrics.ObserveOperation("lock_fundRoot", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveFunding(funded)
	writeResult(w, req.ID, fundRootResult{ID: params.ID, FundedAmount: funded})
}

type materializeParams struct {
	PoolID    string             `json:"poolId"`
	Recipient string             `json:"recipient"`
	Params    scheduleParamsJSON `json:"params"`
	Proof     []string           `json:"proof"`
}

func (s *Server) handleMaterialize(w http.ResponseWriter, req *RPCRequest) {
	var params materializeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	poolID, err := parseHash(params.PoolID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	schedule, err := s.engine.MaterializeSchedule(poolID, recipient, params.Params.toParams(), proof)
	s.metrics.ObserveOperation("lock_materialize", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("schedule materialized", "pool", params.PoolID, "escrow", hex.EncodeToString(schedule.ID[:]))
	writeResult(w, req.ID, newScheduleResult(schedule))
}

type claimFromRootParams struct {
	PoolID    string             `json:"poolId"`
	Recipient string             `json:"recipient"`
	Params    scheduleParamsJSON `json:"params"`
	Proof     []string           `json:"proof"`
	MaxAmount uint64             `json:"maxAmount"`
}

func (s *Server) handleClaimFromRoot(w http.ResponseWriter, req *RPCRequest) {
	var params claimFromRootParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	poolID, err := parseHash(params.PoolID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.ClaimFromRoot(poolID, recipient, params.Params.toParams(), proof, params.MaxAmount)
	s.metrics.ObserveOperation("lock_claimFromRoot", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if pool, getErr := s.engine.GetRootEscrow(poolID); getErr == nil {
		s.metrics.ObserveClaim(pool.Token, amount)
	}
	writeResult(w, req.ID, claimResult{ID: params.PoolID, Amount: amount})
}

func (s *Server) handleGetRoot(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	pool, err := s.engine.GetRootEscrow(id)
	s.metrics.ObserveOperation("lock_getRoot", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newRootEscrowResult(pool))
}

type claimStatusParams struct {
	PoolID    string `json:"poolId"`
	Recipient string `json:"recipient"`
}

type claimStatusResult struct {
	Pool                string `json:"pool"`
	Recipient           string `json:"recipient"`
	TotalClaimedAmount  uint64 `json:"totalClaimedAmount"`
	CurrentLockedAmount uint64 `json:"currentLockedAmount"`
	LatestClaimedAmount uint64 `json:"latestClaimedAmount"`
}

func (s *Server) handleGetClaimStatus(w http.ResponseWriter, req *RPCRequest) {
	var params claimStatusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	poolID, err := parseHash(params.PoolID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	status, err := s.engine.GetClaimStatus(poolID, recipient)
	s.metrics.ObserveOperation("lock_getClaimStatus", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimStatusResult{
		Pool:                hex.EncodeToString(status.Pool[:]),
		Recipient:           hex.EncodeToString(status.Recipient[:]),
		TotalClaimedAmount:  status.TotalClaimedAmount,
		CurrentLockedAmount: status.CurrentLockedAmount,
		LatestClaimedAmount: status.LatestClaimedAmount,
	})
}

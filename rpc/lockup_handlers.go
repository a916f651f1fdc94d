package rpc

import (
	"encoding/hex"
	"net/http"

	"lockvault/native/lockup"
)

type scheduleParamsJSON struct {
	VestingStartTime    uint64 `json:"vestingStartTime"`
	CliffTime           uint64 `json:"cliffTime"`
	Frequency           uint64 `json:"frequency"`
	CliffUnlockAmount   uint64 `json:"cliffUnlockAmount"`
	AmountPerPeriod     uint64 `json:"amountPerPeriod"`
	NumberOfPeriod      uint64 `json:"numberOfPeriod"`
	UpdateRecipientMode uint8  `json:"updateRecipientMode"`
	CancelMode          uint8  `json:"cancelMode"`
}

func (p scheduleParamsJSON) toParams() lockup.ScheduleParams {
	return lockup.ScheduleParams{
		VestingStartTime:    p.VestingStartTime,
		CliffTime:           p.CliffTime,
		Frequency:           p.Frequency,
		CliffUnlockAmount:   p.CliffUnlockAmount,
		AmountPerPeriod:     p.AmountPerPeriod,
		NumberOfPeriod:      p.NumberOfPeriod,
		UpdateRecipientMode: lockup.PermissionMode(p.UpdateRecipientMode),
		CancelMode:          lockup.PermissionMode(p.CancelMode),
	}
}

func newScheduleParamsJSON(p lockup.ScheduleParams) scheduleParamsJSON {
	return scheduleParamsJSON{
		VestingStartTime:    p.VestingStartTime,
		CliffTime:           p.CliffTime,
		Frequency:           p.Frequency,
		CliffUnlockAmount:   p.CliffUnlockAmount,
		AmountPerPeriod:     p.AmountPerPeriod,
		NumberOfPeriod:      p.NumberOfPeriod,
		UpdateRecipientMode: uint8(p.UpdateRecipientMode),
		CancelMode:          uint8(p.CancelMode),
	}
}

type scheduleResult struct {
	ID                 string             `json:"id"`
	Recipient          string             `json:"recipient"`
	Creator            string             `json:"creator"`
	Token              string             `json:"token"`
	Base               string             `json:"base"`
	Params             scheduleParamsJSON `json:"params"`
	TotalClaimedAmount uint64             `json:"totalClaimedAmount"`
	CancelledAt        uint64             `json:"cancelledAt"`
	CreatedAt          uint64             `json:"createdAt"`
}

func newScheduleResult(s *lockup.VestingSchedule) scheduleResult {
	return scheduleResult{
		ID:                 hex.EncodeToString(s.ID[:]),
		Recipient:          hex.EncodeToString(s.Recipient[:]),
		Creator:            hex.EncodeToString(s.Creator[:]),
		Token:              s.Token,
		Base:               hex.EncodeToString(s.Base[:]),
		Params:             newScheduleParamsJSON(s.ScheduleParams),
		TotalClaimedAmount: s.TotalClaimedAmount,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
	}
}

type createScheduleParams struct {
	Creator   string             `json:"creator"`
	Recipient string             `json:"recipient"`
	Token     string             `json:"token"`
	Base      string             `json:"base"`
	Params    scheduleParamsJSON `json:"params"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, req *RPCRequest) {
	var params createScheduleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	base, err := parseHash(params.Base)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	schedule, err := s.engine.CreateSchedule(creator, recipient, params.Token, base, params.Params.toParams())
	s.metrics.ObserveOperation("lock_create", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("schedule created", "id", hex.EncodeToString(schedule.ID[:]), "token", schedule.Token)
	writeResult(w, req.ID, newScheduleResult(schedule))
}

type claimParams struct {
	ID        string `json:"id"`
	Caller    string `json:"caller"`
	MaxAmount uint64 `json:"maxAmount"`
}

type claimResult struct {
	ID     string `json:"id"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.Claim(id, caller, params.MaxAmount)
	s.metrics.ObserveOperation("lock_claim", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if schedule, getErr := s.engine.GetSchedule(id); getErr == nil {
		s.metrics.ObserveClaim(schedule.Token, amount)
	}
	writeResult(w, req.ID, claimResult{ID: params.ID, Amount: amount})
}

type actorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

func (s *Server) handleCancel(w http.ResponseWriter, req *RPCRequest) {
	var params actorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.Cancel(id, caller)
	s.metrics.ObserveOperation("lock_cancel", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("schedule cancelled", "id", params.ID)
	writeResult(w, req.ID, map[string]string{"status": "cancelled"})
}

type updateRecipientParams struct {
	ID           string `json:"id"`
	Caller       string `json:"caller"`
	NewRecipient string `json:"newRecipient"`
}

func (s *Server) handleUpdateRecipient(w http.ResponseWriter, req *RPCRequest) {
	var params updateRecipientParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	newRecipient, err := parseAddress(params.NewRecipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.UpdateRecipient(id, caller, newRecipient)
	s.metrics.ObserveOperation("lock_updateRecipient", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "updated"})
}

func (s *Server) handleCloseSchedule(w http.ResponseWriter, req *RPCRequest) {
	var params actorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.CloseSchedule(id, caller)
	s.metrics.ObserveOperation("lock_close", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "closed"})
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, req *RPCRequest) {
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
	schedule, err := s.engine.GetSchedule(id)
	s.metrics.ObserveOperation("lock_get", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newScheduleResult(schedule))
}

type registerBadgeParams struct {
	Caller      string `json:"caller"`
	Token       string `json:"token"`
	BasisPoints uint16 `json:"basisPoints"`
	MaximumFee  uint64 `json:"maximumFee"`
}

func (s *Server) handleRegisterTokenBadge(w http.ResponseWriter, req *RPCRequest) {
	var params registerBadgeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	badge, err := s.engine.RegisterTokenBadge(caller, params.Token, params.BasisPoints, params.MaximumFee)
	s.metrics.ObserveOperation("lock_registerTokenBadge", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("token badge registered", "token", badge.Token, "basisPoints", badge.BasisPoints)
	writeResult(w, req.ID, map[string]interface{}{
		"token":       badge.Token,
		"basisPoints": badge.BasisPoints,
		"maximumFee":  badge.MaximumFee,
	})
}

type removeBadgeParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

func (s *Server) handleRemoveTokenBadge(w http.ResponseWriter, req *RPCRequest) {
	var params removeBadgeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLockupInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.RemoveTokenBadge(caller, params.Token)
	s.metrics.ObserveOperation("lock_removeTokenBadge", err)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "removed"})
}

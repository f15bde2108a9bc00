package api

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/julienschmidt/httprouter"

	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

type errorResponse struct {
	Error string `json:"error"`
}

type rootResponse struct {
	Period     uint32      `json:"period"`
	Root       common.Hash `json:"root"`
	LeafCount  uint32      `json:"leafCount"`
	TokenTotal string      `json:"tokenTotal,omitempty"`
	Destroyed  bool        `json:"destroyed"`
}

type claimResponse struct {
	Index   uint32        `json:"index"`
	Address string        `json:"address"`
	Balance string        `json:"balance"`
	Proof   []common.Hash `json:"proof"`
	Period  uint32        `json:"period"`
	Claimed bool          `json:"claimed"`
}

type vestingResponse struct {
	Address   string `json:"address"`
	Locked    string `json:"locked"`
	Vested    string `json:"vested"`
	Claimable string `json:"claimable"`
	Claimed   string `json:"claimed"`
	StartTime uint64 `json:"startTime"`
	EndTime   uint64 `json:"endTime"`
	Paused    bool   `json:"paused"`
	Disabled  bool   `json:"disabled"`
}

type supplyResponse struct {
	InitialLockedSupply string `json:"initialLockedSupply"`
	TotalClaimedAllTime string `json:"totalClaimedAllTime"`
	Locked              string `json:"locked"`
	Vested              string `json:"vested"`
	Recipients          int    `json:"recipients"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, "no ledger")
		return
	}
	root, leaves := s.ledger.Root()
	resp := rootResponse{
		Period:    s.ledger.Period(),
		Root:      root,
		LeafCount: leaves,
		Destroyed: s.ledger.Destroyed(),
	}
	if com := s.commitment(); com != nil && com.Root == root {
		resp.TokenTotal = com.Total().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	addr, ok := parseAddress(w, ps)
	if !ok {
		return
	}
	com := s.commitment()
	if com == nil {
		writeError(w, http.StatusNotFound, "no published distribution")
		return
	}
	entry, ok := com.EntryOf(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "no claim for "+strings.ToLower(addr.Hex()))
		return
	}
	resp := claimResponse{
		Index:   entry.Index,
		Address: strings.ToLower(entry.Address.Hex()),
		Balance: entry.Amount.String(),
		Proof:   entry.Proof,
	}
	if s.ledger != nil {
		if root, _ := s.ledger.Root(); root == com.Root {
			resp.Period = s.ledger.Period()
			resp.Claimed = s.ledger.IsClaimed(resp.Period, entry.Index)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) now() uint64 {
	return uint64(s.clock.Now().Unix())
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.escrow == nil {
		writeError(w, http.StatusNotFound, "no escrow")
		return
	}
	sup := s.escrow.Supply(s.now())
	writeJSON(w, http.StatusOK, supplyResponse{
		InitialLockedSupply: sup.InitialLockedSupply.String(),
		TotalClaimedAllTime: sup.TotalClaimedAllTime.String(),
		Locked:              sup.Locked.String(),
		Vested:              sup.Vested.String(),
		Recipients:          sup.Recipients,
	})
}

func (s *Server) handleVesting(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.escrow == nil {
		writeError(w, http.StatusNotFound, "no escrow")
		return
	}
	addr, ok := parseAddress(w, ps)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newVestingResponse(s.escrow.Status(addr, s.now())))
}

func newVestingResponse(st vesting.Status) vestingResponse {
	return vestingResponse{
		Address:   strings.ToLower(st.Address.Hex()),
		Locked:    st.Locked.String(),
		Vested:    st.Vested.String(),
		Claimable: st.Claimable.String(),
		Claimed:   st.Claimed.String(),
		StartTime: st.StartTime,
		EndTime:   st.EndTime,
		Paused:    st.Paused,
		Disabled:  st.Disabled,
	}
}

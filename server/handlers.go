package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/utils"
)

type authorizeResponse struct {
	Authorized       bool                    `json:"authorized"`
	FetchInstruction *types.FetchInstruction `json:"fetchInstruction,omitempty"`
	AccessReason     types.AccessReason      `json:"accessReason,omitempty"`
	Error            string                  `json:"error,omitempty"`
	Reason           types.AccessReason      `json:"reason,omitempty"`
}

type uploadCompleteResponse struct {
	Paid     bool   `json:"paid"`
	UploadID string `json:"uploadId"`
	TxHash   string `json:"txHash,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	contentID, err := utils.ParseContentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, &types.X402Error{Code: types.ErrInvalidInput, Message: "invalid content id format"})
		return
	}

	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, unauthenticated(ErrMissingToken))
		return
	}

	body, err := utils.ParseAuthorizeRequest(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	wallet := s.resolveWallet(id, body)
	if body.CreatorAddress != "" {
		s.log.Debug("creator hint supplied", map[string]any{"content": contentID.String(), "creator": body.CreatorAddress})
	}

	proof := types.PaymentProof(r.Header.Get(HeaderPayment))

	decision, err := s.engine.Authorize(r.Context(), wallet, contentID, proof)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case decision.Authorized:
		writeJSON(w, http.StatusOK, authorizeResponse{
			Authorized:       true,
			FetchInstruction: decision.FetchInstruction,
			AccessReason:     decision.Reason,
		})
	case decision.Challenge != nil:
		writeJSON(w, http.StatusPaymentRequired, decision.Challenge)
	default:
		writeJSON(w, http.StatusForbidden, authorizeResponse{
			Error:  "Access denied",
			Reason: decision.Reason,
		})
	}
}

// resolveWallet picks the wallet to check: the token's wallet, unless the
// body names one and body wallets are trusted.
func (s *Server) resolveWallet(id *Identity, body *utils.AuthorizeRequest) common.Address {
	wallet := id.Wallet
	if body.UserWallet == "" {
		return wallet
	}

	if !s.trustBodyWallet {
		if wallet == (common.Address{}) || !types.SameAddress(wallet.Hex(), body.UserWallet) {
			s.log.Warn("ignoring client-asserted wallet", map[string]any{"subject": id.Subject, "userWallet": body.UserWallet})
		}
		return wallet
	}

	asserted := common.HexToAddress(body.UserWallet)
	if asserted != wallet {
		s.log.Warn("using client-asserted wallet", map[string]any{
			"subject":    id.Subject,
			"userWallet": asserted.Hex(),
		})
	}
	return asserted
}

func (s *Server) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	ch, err := s.engine.UploadChallenge()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusPaymentRequired, ch)
}

func (s *Server) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	uploadID := r.Header.Get(HeaderUploadID)
	proof := types.PaymentProof(r.Header.Get(HeaderPayment))

	decision, err := s.engine.AuthorizeUpload(r.Context(), uploadID, proof)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Authorized {
		writeJSON(w, http.StatusPaymentRequired, decision.Challenge)
		return
	}

	resp := uploadCompleteResponse{Paid: true, UploadID: uploadID}
	if decision.Verification != nil {
		resp.TxHash = decision.Verification.TxHash
	}
	writeJSON(w, http.StatusOK, resp)
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"

	"usdc-settlement-ledger/internal/adapter/http/dto"
	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"
	"usdc-settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderRailSignature carries the rail's HMAC-SHA256 signature of the raw
// webhook body.
const HeaderRailSignature = "X-Rail-Signature"

// railStatusSuccessful is the only rail status that settles funds.
const railStatusSuccessful = "SUCCESSFUL"

// RailHandler ingests deposit callbacks from the fiat rail. A verified
// callback becomes an onramp settlement, then the deterministic engine scores
// it; scores over the flag threshold are pushed through the fraud controller.
// The whole path is idempotent: a replayed callback observes the existing
// record and changes nothing.
type RailHandler struct {
	settlementSvc ports.SettlementService
	fraudSvc      ports.FraudService
	engine        ports.FraudEngine
	sigSvc        ports.SignatureService
	webhookSecret string
	authority     string
	log           zerolog.Logger
}

// NewRailHandler creates a new RailHandler. authority is the treasury
// authority wallet the settlement runs under.
func NewRailHandler(
	settlementSvc ports.SettlementService,
	fraudSvc ports.FraudService,
	engine ports.FraudEngine,
	sigSvc ports.SignatureService,
	webhookSecret string,
	authority string,
	log zerolog.Logger,
) *RailHandler {
	return &RailHandler{
		settlementSvc: settlementSvc,
		fraudSvc:      fraudSvc,
		engine:        engine,
		sigSvc:        sigSvc,
		webhookSecret: webhookSecret,
		authority:     authority,
		log:           log,
	}
}

// Webhook handles POST /api/v1/rail/webhook.
func (h *RailHandler) Webhook(c *gin.Context) {
	signature := c.GetHeader(HeaderRailSignature)
	if signature == "" {
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if !h.sigSvc.Verify(h.webhookSecret, string(bodyBytes), signature) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("rail webhook with bad signature")
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	var req dto.RailWebhookRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		response.Error(c, apperror.Validation("malformed webhook payload"))
		return
	}
	if req.Status == "" || req.WalletAddress == "" || req.Reference == "" {
		response.Error(c, apperror.Validation("missing webhook fields"))
		return
	}

	// Non-final statuses are acknowledged without settling so the rail stops
	// retrying them.
	if req.Status != railStatusSuccessful {
		h.log.Info().
			Str("status", req.Status).
			Str("reference", req.Reference).
			Msg("rail webhook ignored")
		response.OK(c, dto.RailWebhookResponse{})
		return
	}

	digest := domain.ReferenceDigestHex(req.Reference)

	record, replayed, err := h.settlementSvc.SettleOnramp(c.Request.Context(), ports.OnrampRequest{
		Authority:       h.authority,
		StudentOwner:    req.WalletAddress,
		ReferenceDigest: digest,
		Amount:          req.Amount,
		Reference:       req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	// Fresh settlements get a deterministic risk score; only scores above the
	// flag threshold are applied through the controller.
	if !replayed {
		score := h.engine.Score(ports.ScoreInput{
			Amount:        req.Amount,
			Reference:     req.Reference,
			StudentWallet: req.WalletAddress,
			Direction:     ports.DirectionOnramp,
		})
		if domain.ShouldFlag(score) {
			updated, err := h.fraudSvc.UpdateScore(c.Request.Context(), ports.UpdateScoreRequest{
				Authority:       h.authority,
				ReferenceDigest: digest,
				Reference:       req.Reference,
				Score:           score,
			})
			if err != nil {
				// The deposit itself settled; scoring is best effort here.
				h.log.Error().Err(err).Str("digest", digest).Msg("auto fraud scoring failed")
			} else {
				record = updated
			}
		} else {
			h.log.Debug().
				Uint8("score", score).
				Str("digest", digest).
				Msg("rail deposit below flag threshold")
		}
	}

	response.OK(c, dto.RailWebhookResponse{
		ReferenceDigest: record.ReferenceDigest,
		Replayed:        replayed,
		FraudScore:      record.FraudScore,
		IsFlagged:       record.IsFlagged,
	})
}

// Package handlers implements the HTTP endpoints of the entitlement service emulator.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/entitle/internal/application/dto"
	"github.com/turtacn/entitle/internal/infrastructure/emulator"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/logger"
	"github.com/turtacn/entitle/pkg/utils"
)

// reasonNotEntitled is reported for items the policy denies.
const (
	reasonNotEntitled = "not_entitled"
	reasonNotOwner    = "not_owner"
)

// EntitlementHandler serves check, consume and release requests against the
// emulator policy and ledger.
// EntitlementHandler 基于模拟器策略与账本处理检查、消费和释放请求。
type EntitlementHandler struct {
	policy emulator.Policy
	ledger *emulator.Ledger
	signer *emulator.Signer
	logger logger.Logger
	now    func() time.Time
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(policy emulator.Policy, ledger *emulator.Ledger, signer *emulator.Signer, log logger.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		policy: policy,
		ledger: ledger,
		signer: signer,
		logger: log.WithComponent("entitlement_handler"),
		now:    time.Now,
	}
}

// Authorize answers a batch of items, one decision per item in request order.
// The Accept header selects signed tokens or a JSON array.
// Authorize 按请求顺序为每个条目返回一个决策。
func (h *EntitlementHandler) Authorize(c *gin.Context) {
	var req dto.AuthorizationBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	machineID := machineIDOf(c, req.MachineID)
	decisions := make([]jwt.MapClaims, len(req.Items))
	for i, item := range req.Items {
		decisions[i] = h.decide(item, req.Consume, machineID)
	}

	h.logger.Info(c.Request.Context(), "Authorization batch answered",
		logger.Int("items", len(req.Items)),
		logger.Bool("consume", req.Consume),
		logger.String("machine_id", machineID))

	switch c.NegotiateFormat(constants.ContentTypeJWT, constants.ContentTypeJSON) {
	case constants.ContentTypeJWT:
		tokens := make([]string, len(decisions))
		for i, d := range decisions {
			token, err := h.signer.Sign(d)
			if err != nil {
				h.internalError(c, err)
				return
			}
			tokens[i] = token
		}
		c.Data(http.StatusOK, constants.ContentTypeJWT, []byte(strings.Join(tokens, "\n")))
	default:
		c.JSON(http.StatusOK, decisions)
	}
}

// AuthorizeItem answers a single item named in the path. It is the only
// endpoint offering the bare text/plain boolean.
func (h *EntitlementHandler) AuthorizeItem(c *gin.Context) {
	var req dto.ItemAuthorizationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item := c.Param("item")
	decision := h.decide(item, req.Consume, machineIDOf(c, req.MachineID))
	h.render(c, decision, item)
}

// Release returns a consumed grant to the pool. Unknown token ids are answered
// with a negative decision carrying the no_such_consumption reason.
func (h *EntitlementHandler) Release(c *gin.Context) {
	var req dto.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, res := h.ledger.Release(req.TokenID, machineIDOf(c, req.MachineID))
	ok := res == emulator.Released
	decision := jwt.MapClaims{
		req.TokenID: ok,
		"iat":       h.now().Unix(),
	}
	switch res {
	case emulator.Released:
		decision["item"] = item
	case emulator.ReleaseNotOwner:
		decision[constants.DecisionFieldReason] = reasonNotOwner
	default:
		decision[constants.DecisionFieldReason] = constants.ReasonNoSuchConsumption
	}

	h.logger.Info(c.Request.Context(), "Release answered",
		logger.String("jti", req.TokenID),
		logger.Bool("released", ok))
	h.render(c, decision, req.TokenID)
}

func (h *EntitlementHandler) decide(item string, consume bool, machineID string) jwt.MapClaims {
	now := h.now()
	granted := h.policy.Granted(item)
	decision := jwt.MapClaims{
		item:  granted,
		"iat": now.Unix(),
	}
	if !granted {
		decision[constants.DecisionFieldReason] = reasonNotEntitled
		return decision
	}
	if consume {
		decision[constants.DecisionFieldTokenID] = h.ledger.Consume(item, machineID)
		decision[constants.DecisionFieldExpiresAt] = now.Add(h.ledger.TTL()).Unix()
	}
	return decision
}

// render writes one decision in the negotiated format. key names the verdict
// field used for the text/plain rendering.
func (h *EntitlementHandler) render(c *gin.Context, decision jwt.MapClaims, key string) {
	switch c.NegotiateFormat(constants.ContentTypeJWT, constants.ContentTypeJSON, constants.ContentTypeText) {
	case constants.ContentTypeJWT:
		token, err := h.signer.Sign(decision)
		if err != nil {
			h.internalError(c, err)
			return
		}
		c.Data(http.StatusOK, constants.ContentTypeJWT, []byte(token))
	case constants.ContentTypeText:
		verdict, _ := decision[key].(bool)
		if verdict {
			c.String(http.StatusOK, "true")
		} else {
			c.String(http.StatusOK, "false")
		}
	default:
		c.JSON(http.StatusOK, decision)
	}
}

func (h *EntitlementHandler) badRequest(c *gin.Context, err error) {
	h.logger.Warn(c.Request.Context(), "Rejected malformed request", logger.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:            "invalid_request",
		ErrorDescription: err.Error(),
	})
}

func (h *EntitlementHandler) internalError(c *gin.Context, err error) {
	h.logger.Error(c.Request.Context(), "Failed to sign decision", err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "server_error"})
}

// machineIDOf prefers the machine header over the body field.
func machineIDOf(c *gin.Context, fromBody string) string {
	if id := c.GetHeader(constants.HeaderMachineID); id != "" {
		return id
	}
	return fromBody
}

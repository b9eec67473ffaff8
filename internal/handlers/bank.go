package handlers

import (
	"errors"
	"strconv"
	"time"

	"bankapi/internal/services/ledger"
	"bankapi/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// BankHandler exposes the ledger core over HTTP. It only parses and
// validates request shape and maps service errors to statuses; business
// rules live in the service.
type BankHandler struct {
	ledgerService ledger.Service
}

func NewBankHandler(ledgerService ledger.Service) *BankHandler {
	return &BankHandler{
		ledgerService: ledgerService,
	}
}

func (h *BankHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("userId"))
	if err != nil {
		return response.BadRequest(c, "userId is required and must be a positive integer")
	}

	balance, err := h.ledgerService.GetBalance(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.Success(c, balance, fiber.Map{
		"userId":  userID,
		"balance": balance,
	})
}

func (h *BankHandler) PutMoney(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("userId"))
	if err != nil {
		return response.BadRequest(c, "userId is required and must be a positive integer")
	}

	amount, err := parseAmount(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.ledgerService.Deposit(c.Context(), userID, amount); err != nil {
		return handleServiceError(c, err)
	}

	return response.Success(c, 1, nil)
}

func (h *BankHandler) TakeMoney(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("userId"))
	if err != nil {
		return response.BadRequest(c, "userId is required and must be a positive integer")
	}

	amount, err := parseAmount(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.ledgerService.Withdraw(c.Context(), userID, amount); err != nil {
		return handleServiceError(c, err)
	}

	return response.Success(c, 1, nil)
}

func (h *BankHandler) TransferMoney(c *fiber.Ctx) error {
	var input struct {
		FromUserID uint64          `json:"fromUserId"`
		ToUserID   uint64          `json:"toUserId"`
		Amount     decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if input.FromUserID == 0 || input.ToUserID == 0 {
		return response.BadRequest(c, "fromUserId and toUserId are required")
	}
	if !input.Amount.IsPositive() {
		return response.BadRequest(c, "amount must be greater than 0")
	}

	if err := h.ledgerService.Transfer(c.Context(), input.FromUserID, input.ToUserID, input.Amount); err != nil {
		return handleServiceError(c, err)
	}

	return response.Success(c, 1, nil)
}

func (h *BankHandler) GetOperationList(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("userId"))
	if err != nil {
		return response.BadRequest(c, "userId is required and must be a positive integer")
	}

	from, err := parseTimestamp(c.Query("from"))
	if err != nil {
		return response.BadRequest(c, "from must be an RFC 3339 timestamp")
	}
	to, err := parseTimestamp(c.Query("to"))
	if err != nil {
		return response.BadRequest(c, "to must be an RFC 3339 timestamp")
	}

	ops, err := h.ledgerService.GetHistory(c.Context(), userID, from, to)
	if err != nil {
		return handleServiceError(c, err)
	}

	items := make([]fiber.Map, 0, len(ops))
	for _, op := range ops {
		items = append(items, fiber.Map{
			"date":          op.CreatedAt,
			"type":          op.Type,
			"amount":        op.Amount,
			"relatedUserId": op.RelatedUserID,
		})
	}

	return response.Success(c, len(items), items)
}

func parseUserID(raw string) (uint64, error) {
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || userID == 0 {
		return 0, errors.New("invalid user id")
	}
	return userID, nil
}

func parseAmount(c *fiber.Ctx) (decimal.Decimal, error) {
	var input struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return decimal.Zero, errors.New("invalid request format")
	}
	if !input.Amount.IsPositive() {
		return decimal.Zero, errors.New("amount must be greater than 0")
	}
	return input.Amount, nil
}

func parseTimestamp(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func handleServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccountTransfer),
		errors.Is(err, ledger.ErrInvalidRange):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, ledger.ErrLockTimeout):
		return response.ServiceUnavailable(c, err.Error())
	default:
		return response.ServerError(c, "internal server error")
	}
}

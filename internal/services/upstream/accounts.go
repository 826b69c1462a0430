package upstream

import (
	"context"

	"SignalPilot/internal/domain/models"
)

type accountCheckRequest struct {
	UserID    string           `json:"user_id"`
	Ticker    string           `json:"ticker"`
	Direction models.Direction `json:"direction"`
	Amount    string           `json:"amount"`
	Leverage  int              `json:"leverage"`
}

// AccountClient asks the account service whether a user may trade.
type AccountClient struct {
	base *HTTPServiceBase
}

func NewAccountClient(base *HTTPServiceBase) *AccountClient {
	return &AccountClient{base: base}
}

func (c *AccountClient) Validate(ctx context.Context, user models.UserProfile, signal *models.Signal) (models.AccountCheck, error) {
	req := accountCheckRequest{
		UserID:   user.ID,
		Amount:   user.TradeAmount.String(),
		Leverage: user.Leverage,
	}
	if signal != nil {
		req.Ticker = signal.Ticker
		req.Direction = signal.DirectionHint
	}
	var out models.AccountCheck
	if err := c.base.PostJSON(ctx, "/accounts/validate", req, &out); err != nil {
		return models.AccountCheck{}, err
	}
	return out, nil
}

// PaperAccounts approves every user with their configured trade amount as
// balance. Used when no account service is configured.
type PaperAccounts struct{}

func (PaperAccounts) Validate(_ context.Context, user models.UserProfile, _ *models.Signal) (models.AccountCheck, error) {
	return models.AccountCheck{
		OK:       true,
		Exchange: "paper",
		Balance: models.BalanceInfo{
			Available: user.TradeAmount,
			Bucket:    "paper",
		},
	}, nil
}

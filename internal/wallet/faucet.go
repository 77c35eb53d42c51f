package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

// ErrWalletCreationFailed wraps every faucet provisioning failure; no wallet
// state is created when it is returned.
var ErrWalletCreationFailed = errors.New("wallet creation failed")

// FaucetResult is a freshly funded testnet account.
type FaucetResult struct {
	Address string
	Seed    string
	Balance xrpamount.Amount
}

// FaucetClient provisions funded wallets from the testnet faucet. A single
// blocking POST with its own timeout.
type FaucetClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewFaucetClient(url string, timeout time.Duration, logger *zap.Logger) *FaucetClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FaucetClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// faucetResponse covers both the current and the older testnet faucet
// payloads.
type faucetResponse struct {
	Account struct {
		ClassicAddress string `json:"classicAddress"`
		Address        string `json:"address"`
		Secret         string `json:"secret"`
		Seed           string `json:"seed"`
	} `json:"account"`
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

// ProvisionWallet requests a funded account from the faucet.
func (c *FaucetClient) ProvisionWallet(ctx context.Context) (FaucetResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return FaucetResult{}, fmt.Errorf("%w: %v", ErrWalletCreationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FaucetResult{}, fmt.Errorf("%w: %v", ErrWalletCreationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return FaucetResult{}, fmt.Errorf("%w: faucet returned status %d", ErrWalletCreationFailed, resp.StatusCode)
	}

	var parsed faucetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return FaucetResult{}, fmt.Errorf("%w: decoding faucet response: %v", ErrWalletCreationFailed, err)
	}

	address := parsed.Account.ClassicAddress
	if address == "" {
		address = parsed.Account.Address
	}
	seed := parsed.Account.Secret
	if seed == "" {
		seed = parsed.Account.Seed
	}
	if address == "" || seed == "" {
		return FaucetResult{}, fmt.Errorf("%w: faucet response missing account fields", ErrWalletCreationFailed)
	}

	funded := parsed.Amount
	if funded == 0 {
		funded = parsed.Balance
	}

	c.logger.Info("faucet wallet provisioned",
		zap.String("address", address),
		zap.Float64("amount_xrp", funded))

	return FaucetResult{
		Address: address,
		Seed:    seed,
		Balance: xrpamount.FromDecimalXRP(funded),
	}, nil
}

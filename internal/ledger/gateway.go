// Package ledger talks to the wager contract. The Gateway signs and submits
// transactions with the bookie key, waits (bounded) for confirmation, and
// decodes revert reasons by replaying failed calls; the HeadFeed tracks the
// L1 chain position that settlement deadlines are measured against.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// GatewayConfig carries everything needed to construct a Gateway.
type GatewayConfig struct {
	RPCURL         string
	ContractAddr   string
	PrivateKeyHex  string
	ChainID        int64
	AcceptGas      uint64
	SettleGas      uint64
	GasPriceGwei   float64
	ConfirmTimeout time.Duration
}

// Gateway implements domain.Ledger over an Ethereum JSON-RPC endpoint.
type Gateway struct {
	eth      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer

	acceptGas      uint64
	settleGas      uint64
	gasPrice       *big.Int
	confirmTimeout time.Duration

	params domain.LedgerParams
	logger *slog.Logger
}

// NewGateway dials the RPC endpoint, loads the contract constants (safety
// margin, bet and balance caps, release version), and returns a ready
// Gateway. A failure to read any constant is fatal: the engine cannot
// validate deadlines without them.
func NewGateway(ctx context.Context, cfg GatewayConfig, logger *slog.Logger) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(bookieABI))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid bookie key: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger: chain id: %w", err)
		}
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}

	g := &Gateway{
		eth:            client,
		contract:       common.HexToAddress(cfg.ContractAddr),
		abi:            parsed,
		key:            key,
		from:           ethcrypto.PubkeyToAddress(key.PublicKey),
		signer:         types.LatestSignerForChainID(chainID),
		acceptGas:      cfg.AcceptGas,
		settleGas:      cfg.SettleGas,
		gasPrice:       gasPriceWei(cfg.GasPriceGwei),
		confirmTimeout: confirmTimeout,
		logger:         logger.With(slog.String("component", "ledger_gateway")),
	}

	if err := g.loadParams(ctx); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "ledger gateway ready",
		slog.String("contract", g.contract.Hex()),
		slog.String("bookie", g.from.Hex()),
		slog.Uint64("safety_margin", g.params.SafetyMargin),
		slog.Uint64("release_version", g.params.ReleaseVersion),
	)
	return g, nil
}

// Params returns the contract constants read at startup.
func (g *Gateway) Params() domain.LedgerParams { return g.params }

// Close releases the underlying RPC connection.
func (g *Gateway) Close() { g.eth.Close() }

func (g *Gateway) loadParams(ctx context.Context) error {
	margin, err := g.viewUint(ctx, "BLOCK_SAFETY_MARGIN")
	if err != nil {
		return err
	}
	maxBet, err := g.viewBig(ctx, "max_bet_size")
	if err != nil {
		return err
	}
	maxBalance, err := g.viewBig(ctx, "max_account_balance")
	if err != nil {
		return err
	}
	version, err := g.viewUint(ctx, "RELEASE_VERSION")
	if err != nil {
		return err
	}

	g.params = domain.LedgerParams{
		SafetyMargin:      margin,
		MaxBetSize:        maxBet,
		MaxAccountBalance: maxBalance,
		ReleaseVersion:    version,
	}
	return nil
}

func (g *Gateway) viewBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	out, err := g.eth.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: call %s: %w", method, err)
	}
	vals, err := g.abi.Unpack(method, out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("ledger: unpack %s: %w", method, err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("ledger: %s returned unexpected type %T", method, vals[0])
	}
	return v, nil
}

func (g *Gateway) viewUint(ctx context.Context, method string, args ...any) (uint64, error) {
	v, err := g.viewBig(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// SpendableBalance returns the caller's unlocked contract balance in wei.
func (g *Gateway) SpendableBalance(ctx context.Context, addr string) (*big.Int, error) {
	return g.viewBig(ctx, "getSpendableBalance", common.HexToAddress(addr))
}

// LockedBalance returns the portion of the contract balance locked behind
// open wagers.
func (g *Gateway) LockedBalance(ctx context.Context, addr string) (*big.Int, error) {
	return g.viewBig(ctx, "getLockedBalance", common.HexToAddress(addr))
}

// WalletBalance returns the plain chain balance of an address in wei.
func (g *Gateway) WalletBalance(ctx context.Context, addr string) (*big.Int, error) {
	bal, err := g.eth.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: balance of %s: %w", addr, err)
	}
	return bal, nil
}

// AcceptBet submits a makeBet transaction and waits for confirmation. On a
// successful receipt the ledger-assigned bet id is read from the BetCreated
// log; on a revert the reason is decoded by replaying the call.
func (g *Gateway) AcceptBet(ctx context.Context, over, under, tokenRef string, amount, price *big.Int, deadline uint64) (domain.SubmitResult, error) {
	data, err := g.abi.Pack("makeBet",
		common.HexToAddress(over),
		common.HexToAddress(under),
		tokenRef,
		amount,
		price,
		new(big.Int).SetUint64(deadline),
	)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("ledger: pack makeBet: %w", err)
	}

	receipt, err := g.transact(ctx, data, g.acceptGas)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	res := domain.SubmitResult{TxHash: receipt.TxHash.Hex()}
	if receipt.Status == types.ReceiptStatusFailed {
		res.Reverted = true
		res.RevertReason = g.revertReason(ctx, receipt, data)
		return res, nil
	}

	betID, err := g.betIDFromLogs(receipt)
	if err != nil {
		// The bet exists on the ledger but we cannot identify it. Surface as
		// a transport-level failure so the caller does not fabricate an id.
		return domain.SubmitResult{}, fmt.Errorf("ledger: accept confirmed but bet id missing: %w", err)
	}
	res.BetID = betID
	return res, nil
}

// SettleBet submits a settleBet transaction carrying the outcome and waits
// for confirmation.
func (g *Gateway) SettleBet(ctx context.Context, betID uint64, overWins bool) (domain.SubmitResult, error) {
	data, err := g.abi.Pack("settleBet", new(big.Int).SetUint64(betID), overWins)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("ledger: pack settleBet: %w", err)
	}

	receipt, err := g.transact(ctx, data, g.settleGas)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	res := domain.SubmitResult{TxHash: receipt.TxHash.Hex()}
	if receipt.Status == types.ReceiptStatusFailed {
		res.Reverted = true
		res.RevertReason = g.revertReason(ctx, receipt, data)
	}
	return res, nil
}

// gasPriceWei converts a configured gwei price to wei, keeping fractional
// gwei. Zero or negative means no fixed price is configured and transact
// asks the node for a suggestion instead.
func gasPriceWei(gwei float64) *big.Int {
	if gwei <= 0 {
		return nil
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(params.GWei)).Int(nil)
	return wei
}

// transact signs, submits, and waits for a transaction against the contract.
// The confirmation wait is bounded by the configured timeout so a wedged
// transaction cannot stall a scheduling tick forever.
func (g *Gateway) transact(ctx context.Context, data []byte, gasLimit uint64) (*types.Receipt, error) {
	nonce, err := g.eth.PendingNonceAt(ctx, g.from)
	if err != nil {
		return nil, fmt.Errorf("ledger: nonce: %w", err)
	}

	gasPrice := g.gasPrice
	if gasPrice == nil {
		gasPrice, err = g.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger: suggest gas price: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, g.signer, g.key)
	if err != nil {
		return nil, fmt.Errorf("ledger: sign tx: %w", err)
	}

	if err := g.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("ledger: send tx: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, g.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("ledger: wait for %s: %w", signed.Hash().Hex(), err)
	}
	return receipt, nil
}

// revertReason replays the failed call at the block it was mined in and
// decodes the revert payload. Returns "" when no reason can be extracted.
func (g *Gateway) revertReason(ctx context.Context, receipt *types.Receipt, data []byte) string {
	msg := ethereum.CallMsg{
		From:     g.from,
		To:       &g.contract,
		Gas:      receipt.GasUsed,
		GasPrice: g.gasPrice,
		Data:     data,
	}

	_, err := g.eth.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		// The replay succeeded even though the transaction reverted; state
		// moved between mining and replay, nothing to decode.
		return ""
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if hexData, ok := de.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}

	// Some endpoints put the reason straight into the error text.
	if s := strings.TrimPrefix(err.Error(), "execution reverted: "); s != err.Error() {
		return s
	}
	g.logger.WarnContext(ctx, "undecodable revert",
		slog.String("tx", receipt.TxHash.Hex()),
		slog.String("error", err.Error()),
	)
	return ""
}

// betIDFromLogs extracts the ledger-assigned bet id from the BetCreated
// event emitted by a successful makeBet.
func (g *Gateway) betIDFromLogs(receipt *types.Receipt) (uint64, error) {
	event := g.abi.Events["BetCreated"]
	for _, lg := range receipt.Logs {
		if lg.Address != g.contract {
			continue
		}
		if len(lg.Topics) > 0 && lg.Topics[0] == event.ID && len(lg.Data) >= 32 {
			return new(big.Int).SetBytes(lg.Data[:32]).Uint64(), nil
		}
	}
	return 0, fmt.Errorf("no BetCreated log in receipt %s", receipt.TxHash.Hex())
}

// Compile-time interface check.
var _ domain.Ledger = (*Gateway)(nil)

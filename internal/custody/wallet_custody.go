// internal/custody/wallet_custody.go
package custody

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/util"
	"yieldlock/pkg/db"

	"github.com/shopspring/decimal"
)

// Default system accounts of the wallet ledger.
const (
	DefaultCurrency            = "USDC"
	DefaultCustodyAccount      = "yieldlock:custody"
	DefaultTreasuryAccount     = "yieldlock:treasury"
	DefaultYieldReserveAccount = "yieldlock:yield-reserve"
)

// WalletCustody keeps custody in the postgres wallets table. Vault funds sit in
// a system custody wallet and every movement is recorded in transactions.
// Credited yield is drawn from the yield reserve wallet, which the yield venue
// keeps funded.
type WalletCustody struct {
	txm             *db.TxManager
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	currency        string
	custodyAccount  string
	treasuryAccount string
	yieldAccount    string
}

// NewWalletCustody creates a WalletCustody using the default system accounts.
func NewWalletCustody(
	txm *db.TxManager,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
) *WalletCustody {
	return &WalletCustody{
		txm:             txm,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		currency:        DefaultCurrency,
		custodyAccount:  DefaultCustodyAccount,
		treasuryAccount: DefaultTreasuryAccount,
		yieldAccount:    DefaultYieldReserveAccount,
	}
}

var (
	_ Custody    = (*WalletCustody)(nil)
	_ Treasury   = (*WalletCustody)(nil)
	_ Statements = (*WalletCustody)(nil)
)

// TransferIn debits payer's wallet and credits the custody wallet.
func (c *WalletCustody) TransferIn(ctx context.Context, payer string, amount decimal.Decimal) error {
	desc := "vault lock"
	return c.move(ctx, "transfer in", payer, c.custodyAccount, payer, amount, domain.TransactionTypeLock, desc)
}

// TransferOut debits the custody wallet and credits payee, opening its wallet if needed.
func (c *WalletCustody) TransferOut(ctx context.Context, payee string, amount decimal.Decimal) error {
	desc := "vault release"
	return c.move(ctx, "transfer out", c.custodyAccount, payee, payee, amount, domain.TransactionTypeRelease, desc)
}

// FundYield debits the yield reserve wallet and credits the custody wallet.
func (c *WalletCustody) FundYield(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	desc := fmt.Sprintf("yield for vault %d", vaultID)
	return c.move(ctx, "fund yield", c.yieldAccount, c.custodyAccount, c.yieldAccount, amount, domain.TransactionTypeYield, desc)
}

// CollectPenalty moves a retained penalty from custody to the treasury wallet.
func (c *WalletCustody) CollectPenalty(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	desc := fmt.Sprintf("early withdrawal penalty for vault %d", vaultID)
	return c.move(ctx, "collect penalty", c.custodyAccount, c.treasuryAccount, c.treasuryAccount, amount, domain.TransactionTypePenalty, desc)
}

// move transfers amount from one wallet to another in a single transaction and
// records the movement against ledgerAccount.
func (c *WalletCustody) move(ctx context.Context, op, from, to, ledgerAccount string, amount decimal.Decimal, txType domain.TransactionType, desc string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return util.ErrTransferRejected
	}

	return c.txm.WithinTx(ctx, func(tx db.TxController) error {
		txExecutor, ok := tx.(repository.DBExecutor)
		if !ok {
			return fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
		}

		// Lock both wallets in a fixed order so opposite transfers cannot deadlock.
		accounts := []string{from, to}
		sort.Strings(accounts)
		wallets := make(map[string]*domain.Wallet, 2)
		for _, account := range accounts {
			wallet, err := c.walletRepo.GetWalletByAccountForUpdate(ctx, txExecutor, account, c.currency)
			switch {
			case errors.Is(err, util.ErrNotFound) && account == to:
				wallet = domain.NewWallet(account, c.currency)
				if err := c.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
					return fmt.Errorf("%s: failed to open wallet for %s: %w", op, account, err)
				}
			case errors.Is(err, util.ErrNotFound):
				return util.ErrInsufficientFunds
			case err != nil:
				return fmt.Errorf("%s: failed to get wallet for %s: %w", op, account, err)
			}
			wallets[account] = wallet
		}

		if wallets[from].Balance.LessThan(amount) {
			return util.ErrInsufficientFunds
		}

		if err := c.walletRepo.UpdateWalletBalance(ctx, txExecutor, wallets[from].ID, amount.Neg()); err != nil {
			return fmt.Errorf("%s: failed to update source wallet balance: %w", op, err)
		}
		if err := c.walletRepo.UpdateWalletBalance(ctx, txExecutor, wallets[to].ID, amount); err != nil {
			return fmt.Errorf("%s: failed to update destination wallet balance: %w", op, err)
		}

		transaction := domain.NewTransaction(ledgerAccount, amount, c.currency, txType, &desc)
		if err := c.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
			return fmt.Errorf("%s: failed to create transaction: %w", op, err)
		}
		return nil
	})
}

// AccountBalance returns account's wallet balance. An account without a wallet has none.
func (c *WalletCustody) AccountBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := c.txm.WithinTx(ctx, func(tx db.TxController) error {
		txExecutor, ok := tx.(repository.DBExecutor)
		if !ok {
			return fmt.Errorf("account balance: transaction controller does not implement DBExecutor")
		}
		wallet, err := c.walletRepo.GetWalletByAccount(ctx, txExecutor, account, c.currency)
		if errors.Is(err, util.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("account balance: %w", err)
		}
		balance = wallet.Balance
		return nil
	})
	return balance, err
}

// AccountHistory returns a page of the custody movements recorded against account, newest first.
func (c *WalletCustody) AccountHistory(ctx context.Context, account string, limit, offset int) ([]domain.Transaction, int64, error) {
	var (
		transactions []domain.Transaction
		total        int64
	)
	err := c.txm.WithinTx(ctx, func(tx db.TxController) error {
		txExecutor, ok := tx.(repository.DBExecutor)
		if !ok {
			return fmt.Errorf("account history: transaction controller does not implement DBExecutor")
		}
		var err error
		transactions, total, err = c.transactionRepo.GetTransactionsByAccount(ctx, txExecutor, account, limit, offset)
		if err != nil {
			return fmt.Errorf("account history: %w", err)
		}
		return nil
	})
	return transactions, total, err
}

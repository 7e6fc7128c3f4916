// Package solanarpc implements ledger.Client against a Solana JSON-RPC node.
// All reads use confirmed commitment, matching what settlement treats as
// final.
package solanarpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fastprodman/fliphouse/internal/ledger"
)

// System-program Transfer instruction layout: u32 LE discriminator (2)
// followed by u64 LE lamports.
const (
	transferDiscriminator = 2
	transferDataLen       = 12
)

type Client struct {
	rpc   *rpc.Client
	house solana.PrivateKey
}

var _ ledger.Client = (*Client)(nil)

// New connects to the RPC endpoint and loads the house keypair from a
// solana-keygen JSON file.
func New(endpoint, houseKeyPath string) (*Client, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(houseKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load house keypair: %w", err)
	}

	return &Client{
		rpc:   rpc.New(endpoint),
		house: key,
	}, nil
}

func (c *Client) HouseAddress() string {
	return c.house.PublicKey().String()
}

func (c *Client) FetchTransaction(ctx context.Context, ref string) (*ledger.Transaction, error) {
	sig, err := solana.SignatureFromBase58(ref)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ledger.ErrTxNotFound
		}

		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if out == nil || out.Transaction == nil {
		return nil, ledger.ErrTxNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	msg := &tx.Message
	if len(msg.AccountKeys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	lt := &ledger.Transaction{
		Ref:      ref,
		Failed:   out.Meta != nil && out.Meta.Err != nil,
		FeePayer: msg.AccountKeys[0].String(),
	}

	for _, ci := range msg.Instructions {
		tr, ok := decodeTransfer(msg, ci)
		if !ok {
			continue
		}
		lt.Transfers = append(lt.Transfers, tr)
	}

	return lt, nil
}

// decodeTransfer extracts a system-program native transfer from a compiled
// instruction, if that is what it is. Instructions referencing accounts
// outside the static key list (address table lookups) are skipped.
func decodeTransfer(msg *solana.Message, ci solana.CompiledInstruction) (ledger.Transfer, bool) {
	if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) {
		return ledger.Transfer{}, false
	}
	if !msg.AccountKeys[ci.ProgramIDIndex].Equals(system.ProgramID) {
		return ledger.Transfer{}, false
	}

	data := []byte(ci.Data)
	if len(data) != transferDataLen {
		return ledger.Transfer{}, false
	}
	if binary.LittleEndian.Uint32(data[:4]) != transferDiscriminator {
		return ledger.Transfer{}, false
	}
	if len(ci.Accounts) < 2 {
		return ledger.Transfer{}, false
	}

	srcIdx, dstIdx := ci.Accounts[0], ci.Accounts[1]
	if int(srcIdx) >= len(msg.AccountKeys) || int(dstIdx) >= len(msg.AccountKeys) {
		return ledger.Transfer{}, false
	}

	return ledger.Transfer{
		Source:      msg.AccountKeys[srcIdx].String(),
		Destination: msg.AccountKeys[dstIdx].String(),
		Lamports:    int64(binary.LittleEndian.Uint64(data[4:12])),
	}, true
}

func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("parse address: %w", err)
	}

	res, err := c.rpc.GetBalance(ctx, pub, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return int64(res.Value), nil
}

func (c *Client) SubmitTransfer(ctx context.Context, to string, lamports int64) (string, error) {
	toPub, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("parse recipient: %w", err)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	housePub := c.house.PublicKey()
	ix := system.NewTransferInstruction(uint64(lamports), housePub, toPub).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(housePub),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(housePub) {
			return &c.house
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	return sig.String(), nil
}

func (c *Client) ConfirmTransfer(ctx context.Context, ref string) (bool, error) {
	sig, err := solana.SignatureFromBase58(ref)
	if err != nil {
		return false, fmt.Errorf("parse signature: %w", err)
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, fmt.Errorf("get signature statuses: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("payout transaction failed on-chain")
	}

	confirmed := st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		st.ConfirmationStatus == rpc.ConfirmationStatusFinalized

	return confirmed, nil
}

// Package chain reads native SOL transfers from a Solana RPC node.
package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/observability"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// systemTransfer is the System Program instruction index of Transfer.
const systemTransfer = 2

// Reader is the chain access the transfer source needs.
type Reader interface {
	Signatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
	Transaction(ctx context.Context, sig solana.Signature) (*solana.Transaction, *rpc.TransactionMeta, error)
}

// Config tunes RPC usage.
type Config struct {
	SignatureLimit int
	RequestsPerSec float64
}

// TransferSource implements ports.TransferSource over a Reader.
type TransferSource struct {
	reader  Reader
	limiter *rate.Limiter
	limit   int
	log     zerolog.Logger
}

// NewTransferSource creates a TransferSource. RPC calls are throttled to
// cfg.RequestsPerSec.
func NewTransferSource(reader Reader, cfg Config, log zerolog.Logger) *TransferSource {
	if cfg.SignatureLimit <= 0 {
		cfg.SignatureLimit = 50
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &TransferSource{
		reader:  reader,
		limiter: rate.NewLimiter(limit, 1),
		limit:   cfg.SignatureLimit,
		log:     log,
	}
}

// RecentTransfers returns successful native transfers into receiver with a
// block time at or after since, newest first.
func (s *TransferSource) RecentTransfers(ctx context.Context, receiver string, since time.Time) ([]domain.Transfer, error) {
	addr, err := solana.PublicKeyFromBase58(receiver)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver address: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	sigs, err := s.reader.Signatures(ctx, addr, s.limit)
	observability.Gateway().RecordChainQuery("getSignaturesForAddress", err)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}

	out := make([]domain.Transfer, 0, len(sigs))
	for _, sig := range sigs {
		if sig == nil || sig.Err != nil || sig.BlockTime == nil {
			continue
		}
		blockTime := sig.BlockTime.Time().UTC()
		if blockTime.Before(since) {
			break
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		tx, meta, err := s.reader.Transaction(ctx, sig.Signature)
		observability.Gateway().RecordChainQuery("getTransaction", err)
		if errors.Is(err, rpc.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
		}
		if meta != nil && meta.Err != nil {
			continue
		}
		sender, amount, ok := NativeTransfer(tx, addr)
		if !ok {
			s.log.Debug().Str("signature", sig.Signature.String()).Msg("not a native transfer, skipped")
			continue
		}
		out = append(out, domain.Transfer{
			Signature: sig.Signature.String(),
			Sender:    sender.String(),
			Receiver:  receiver,
			Amount:    domain.Lamports(amount),
			BlockTime: blockTime,
		})
	}
	return out, nil
}

// NativeTransfer extracts the sender and lamports moved into receiver by the
// System Program transfers of tx. Transfers from several senders are not
// attributed. Balance changes without a decodable transfer instruction, such
// as program CPIs, are ignored.
func NativeTransfer(tx *solana.Transaction, receiver solana.PublicKey) (solana.PublicKey, uint64, bool) {
	if tx == nil {
		return solana.PublicKey{}, 0, false
	}
	keys := tx.Message.AccountKeys

	var (
		sender solana.PublicKey
		total  uint64
		found  bool
	)
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) || !keys[ix.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}
		if len(ix.Data) < 12 || binary.LittleEndian.Uint32(ix.Data[:4]) != systemTransfer || len(ix.Accounts) < 2 {
			continue
		}
		from, to := int(ix.Accounts[0]), int(ix.Accounts[1])
		if from >= len(keys) || to >= len(keys) || !keys[to].Equals(receiver) {
			continue
		}
		if found && !keys[from].Equals(sender) {
			return solana.PublicKey{}, 0, false
		}
		sender = keys[from]
		total += binary.LittleEndian.Uint64(ix.Data[4:12])
		found = true
	}
	return sender, total, found && total > 0
}

// RPCReader adapts *rpc.Client to Reader.
type RPCReader struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCReader creates a Reader for endpoint at the given commitment.
func NewRPCReader(endpoint, commitment string) *RPCReader {
	c := rpc.CommitmentType(commitment)
	if c == "" {
		c = rpc.CommitmentConfirmed
	}
	return &RPCReader{client: rpc.New(endpoint), commitment: c}
}

func (r *RPCReader) Signatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: r.commitment,
	})
}

func (r *RPCReader) Transaction(ctx context.Context, sig solana.Signature) (*solana.Transaction, *rpc.TransactionMeta, error) {
	maxVersion := uint64(0)
	res, err := r.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     r.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, nil, err
	}
	if res == nil || res.Transaction == nil {
		return nil, nil, rpc.ErrNotFound
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, res.Meta, nil
}

// Ping implements ports.HealthChecker.
func (r *RPCReader) Ping(ctx context.Context) error {
	_, err := r.client.GetHealth(ctx)
	return err
}

// Name implements ports.HealthChecker.
func (r *RPCReader) Name() string {
	return "solana-rpc"
}

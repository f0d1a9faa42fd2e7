package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"token-launch-gateway/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PayoutConfig locates the payout script.
type PayoutConfig struct {
	Command string
	Script  string
	WorkDir string
	Timeout time.Duration
}

// payoutReply is the JSON object the payout script prints.
type payoutReply struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
	Error   string `json:"error"`
}

// PayoutSender implements ports.PayoutSender with the payout script.
type PayoutSender struct {
	cfg PayoutConfig
	log zerolog.Logger
}

// NewPayoutSender creates a PayoutSender.
func NewPayoutSender(cfg PayoutConfig, log zerolog.Logger) *PayoutSender {
	if cfg.Command == "" {
		cfg.Command = "node"
	}
	return &PayoutSender{cfg: cfg, log: log}
}

// Send runs `<command> <script> <wallet> <amount> <breakdown json>` and
// returns the transaction hash the script reports.
func (p *PayoutSender) Send(ctx context.Context, wallet string, amount decimal.Decimal, breakdown domain.PayoutBreakdown) (string, error) {
	details, err := json.Marshal(breakdown)
	if err != nil {
		return "", fmt.Errorf("encode payout breakdown: %w", err)
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, p.cfg.Script, wallet, amount.StringFixed(domain.CommissionPrecision), string(details))
	cmd.Dir = p.cfg.WorkDir
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	p.log.Info().Str("wallet", wallet).Str("amount", amount.String()).Str("signature", breakdown.Signature).Msg("sending referral payout")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("payout process failed: %w: %s", err, stderr.String())
	}

	reply, err := parsePayoutReply(stdout.Bytes())
	if err != nil {
		return "", err
	}
	if !reply.Success {
		if reply.Error == "" {
			reply.Error = "payout script reported failure"
		}
		return "", errors.New(reply.Error)
	}
	if reply.TxHash == "" {
		return "", errors.New("payout script returned no transaction hash")
	}
	return reply.TxHash, nil
}

// parsePayoutReply decodes the JSON object that starts at the first '{' of
// the output; earlier lines are script logging.
func parsePayoutReply(out []byte) (*payoutReply, error) {
	start := bytes.IndexByte(out, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON in payout output: %q", bytes.TrimSpace(out))
	}
	var reply payoutReply
	if err := json.NewDecoder(bytes.NewReader(out[start:])).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode payout output: %w", err)
	}
	return &reply, nil
}

package process

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700))
	return path
}

func TestMinter_StreamsLinesAndReadsTokenInfo(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
[ "$1" = "--params" ] || exit 3
echo "=== STARTING FULL TOKEN CREATION PROCESS ==="
echo ""
echo "Creating token..."
echo '{"tokenMint":"MintPump","name":"Moon Cat","symbol":"MCAT","metadataUrl":"ipfs://meta"}' > token-info.json
echo "Token created successfully"
`)
	m := NewMinter(MinterConfig{Command: "sh", Script: script, WorkDir: dir}, zerolog.Nop())

	var lines []string
	res, err := m.Mint(context.Background(), domain.MintParams{Signature: "sig1", Supply: 1000, Network: "devnet"}, func(l string) {
		lines = append(lines, l)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"=== STARTING FULL TOKEN CREATION PROCESS ===",
		"Creating token...",
		"Token created successfully",
	}, lines)
	assert.Equal(t, "MintPump", res.TokenAddress)
	assert.Equal(t, "MCAT", res.Symbol)
	assert.Equal(t, "ipfs://meta", res.MetadataURI)
	assert.Equal(t, uint64(1000), res.TotalSupply)
	assert.Equal(t, "devnet", res.Network)
}

func TestMinter_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
echo "Creating token..."
echo "insufficient lamports" >&2
exit 1
`)
	m := NewMinter(MinterConfig{Command: "sh", Script: script, WorkDir: dir}, zerolog.Nop())

	_, err := m.Mint(context.Background(), domain.MintParams{Signature: "sig1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient lamports")
}

func TestMinter_StaleTokenInfoIsNotReused(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token-info.json"), []byte(`{"tokenMint":"OldMint"}`), 0o600))
	script := writeScript(t, dir, `echo "done"`)
	m := NewMinter(MinterConfig{Command: "sh", Script: script, WorkDir: dir}, zerolog.Nop())

	_, err := m.Mint(context.Background(), domain.MintParams{Signature: "sig1"}, nil)
	assert.Error(t, err)
}

func TestMinter_OverLongLineDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
echo "Creating token..."
head -c 3000000 /dev/zero | tr '\0' 'a'
echo ""
echo "Token created successfully"
echo '{"tokenMint":"MintLong"}' > token-info.json
`)
	m := NewMinter(MinterConfig{Command: "sh", Script: script, WorkDir: dir}, zerolog.Nop())

	type outcome struct {
		res   *domain.MintResult
		err   error
		lines []string
	}
	done := make(chan outcome, 1)
	go func() {
		var lines []string
		res, err := m.Mint(context.Background(), domain.MintParams{Signature: "sig1"}, func(l string) {
			lines = append(lines, l)
		})
		done <- outcome{res, err, lines}
	}()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, "MintLong", out.res.TokenAddress)
		assert.Equal(t, []string{"Creating token...", "Token created successfully"}, out.lines)
	case <-time.After(10 * time.Second):
		t.Fatal("Mint did not return after an over-long output line")
	}
}

func TestReadLines_SkipsLinesOverLimit(t *testing.T) {
	input := "short\n" + strings.Repeat("x", 100) + "\nlast"
	var got []string
	skipped, err := readLines(strings.NewReader(input), 10, func(l string) { got = append(got, l) })

	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"short", "last"}, got)
}

func TestPayoutSender_Success(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
[ "$2" = "0.024000" ] || { echo "bad amount $2" >&2; exit 2; }
echo "Connecting to RPC..."
echo '{"success": true, "txHash": "payout-hash"}'
`)
	p := NewPayoutSender(PayoutConfig{Command: "sh", Script: script, WorkDir: dir}, zerolog.Nop())

	hash, err := p.Send(context.Background(), "walletB", decimal.RequireFromString("0.024"), domain.PayoutBreakdown{Signature: "sig1", Type: "referral_commission"})
	require.NoError(t, err)
	assert.Equal(t, "payout-hash", hash)
}

func TestPayoutSender_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "script reports failure", body: `echo '{"success": false, "error": "insufficient funds"}'`, want: "insufficient funds"},
		{name: "no json", body: `echo "crashed"`, want: "no JSON"},
		{name: "non-zero exit", body: `echo "boom" >&2; exit 1`, want: "boom"},
		{name: "missing hash", body: `echo '{"success": true}'`, want: "no transaction hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := NewPayoutSender(PayoutConfig{Command: "sh", Script: writeScript(t, dir, tt.body), WorkDir: dir}, zerolog.Nop())
			_, err := p.Send(context.Background(), "walletB", decimal.RequireFromString("0.01"), domain.PayoutBreakdown{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// Package process runs the external Node.js scripts that mint tokens and
// send commission payouts.
package process

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"token-launch-gateway/internal/core/domain"

	"github.com/rs/zerolog"
)

// maxStderr bounds the stderr kept for error messages.
const maxStderr = 4096

// maxLine bounds one stdout line. Longer lines are skipped, not fatal.
const maxLine = 1024 * 1024

// MinterConfig locates the minting script.
type MinterConfig struct {
	Command       string // interpreter, usually node
	Script        string
	WorkDir       string
	TokenInfoFile string // written by the script on success, relative to WorkDir
}

// tokenInfo is the file the minting script leaves behind.
type tokenInfo struct {
	TokenMint       string `json:"tokenMint"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	TotalSupply     uint64 `json:"totalSupply"`
	UserTokenAmount uint64 `json:"userTokenAmount"`
	MetadataURL     string `json:"metadataUrl"`
}

// Minter implements ports.Minter by running the minting script once per
// token. The script shares one token info file, so runs must not overlap.
type Minter struct {
	cfg MinterConfig
	log zerolog.Logger
}

// NewMinter creates a Minter.
func NewMinter(cfg MinterConfig, log zerolog.Logger) *Minter {
	if cfg.Command == "" {
		cfg.Command = "node"
	}
	if cfg.TokenInfoFile == "" {
		cfg.TokenInfoFile = "token-info.json"
	}
	return &Minter{cfg: cfg, log: log}
}

// Mint runs `<command> <script> --params <json>` and streams stdout lines
// to onLine.
func (m *Minter) Mint(ctx context.Context, params domain.MintParams, onLine func(line string)) (*domain.MintResult, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode mint params: %w", err)
	}
	infoPath := m.infoPath()
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale token info: %w", err)
	}

	cmd := exec.CommandContext(ctx, m.cfg.Command, m.cfg.Script, "--params", string(payload))
	cmd.Dir = m.cfg.WorkDir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	log := m.log.With().Str("signature", params.Signature).Logger()
	log.Info().Str("script", m.cfg.Script).Msg("starting minting process")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start minting process: %w", err)
	}

	skipped, readErr := readLines(stdout, maxLine, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		log.Debug().Str("line", line).Msg("minter output")
		if onLine != nil {
			onLine(line)
		}
	})
	if readErr != nil {
		// The child must never block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
		log.Warn().Err(readErr).Msg("minter output unreadable, waiting for exit")
	}
	if skipped > 0 {
		log.Warn().Int("lines", skipped).Msg("over-long minter output lines skipped")
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("minting process failed: %w: %s", err, stderr.String())
	}
	return m.readResult(infoPath, params)
}

// readLines calls fn for every newline-terminated line of r up to limit
// bytes and reports how many longer lines were dropped. It reads to EOF
// unless r fails.
func readLines(r io.Reader, limit int, fn func(line string)) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		buf      []byte
		overflow bool
		skipped  int
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if !overflow && len(chunk) > 0 {
			if len(buf)+len(chunk) > limit {
				overflow = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return skipped, nil
			}
			return skipped, err
		}
		if isPrefix {
			continue
		}
		if overflow {
			skipped++
		} else {
			fn(string(buf))
		}
		buf = buf[:0]
		overflow = false
	}
}

func (m *Minter) infoPath() string {
	if filepath.IsAbs(m.cfg.TokenInfoFile) {
		return m.cfg.TokenInfoFile
	}
	return filepath.Join(m.cfg.WorkDir, m.cfg.TokenInfoFile)
}

func (m *Minter) readResult(path string, params domain.MintParams) (*domain.MintResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token info: %w", err)
	}
	var info tokenInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode token info: %w", err)
	}
	if info.TokenMint == "" {
		return nil, errors.New("token info has no mint address")
	}
	res := &domain.MintResult{
		TokenAddress:    info.TokenMint,
		Name:            info.Name,
		Symbol:          info.Symbol,
		TotalSupply:     info.TotalSupply,
		UserTokenAmount: info.UserTokenAmount,
		MetadataURI:     info.MetadataURL,
		Network:         params.Network,
	}
	if res.Name == "" {
		res.Name = params.Name
	}
	if res.Symbol == "" {
		res.Symbol = params.Symbol
	}
	if res.TotalSupply == 0 {
		res.TotalSupply = params.Supply
	}
	return res, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.buf))
}

// Package commit implements the two-phase snapshot commit: prepare
// issues a nonce-bound message to sign, verify proves wallet ownership
// and writes the reduced persona on chain.
package commit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sailorworks/verigrant/internal/chain"
	"github.com/sailorworks/verigrant/internal/domain/alignment"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/domain/nonce"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// messageTemplate is the exact text wallets sign. Changing it strands
// every prepared-but-unverified commit.
const messageTemplate = "Sign this message to commit your alignment chart snapshot to the blockchain. Nonce: %s"

// PersonaWriter is the slice of the registry the protocol needs.
type PersonaWriter interface {
	SetPersona(ctx context.Context, address string, persona model.PersonaData) (string, error)
}

// Prepared is the prepare-phase response.
type Prepared struct {
	MessageToSign string `json:"messageToSign"`
	Nonce         string `json:"nonce"`
}

// Result is the verify-phase response.
type Result struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
}

// Protocol runs the two-phase commit. Verification for one address is
// serialized so concurrent submissions cannot interleave nonce checks
// with contract writes.
type Protocol struct {
	nonces *nonce.Store
	writer PersonaWriter
	logger logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProtocol creates a protocol over the given nonce store and writer.
func NewProtocol(nonces *nonce.Store, writer PersonaWriter) *Protocol {
	return &Protocol{
		nonces: nonces,
		writer: writer,
		logger: logger.Get().Named("commit"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Message renders the signable text for a nonce.
func Message(n string) string {
	return fmt.Sprintf(messageTemplate, n)
}

// Prepare issues a fresh nonce bound to address and returns the message
// the wallet must sign.
func (p *Protocol) Prepare(_ context.Context, address string) (Prepared, error) {
	if !common.IsHexAddress(address) {
		return Prepared{}, ErrInvalidAddress
	}

	n := p.nonces.Issue(address)
	metrics.RecordCommitPrepared()
	return Prepared{MessageToSign: Message(n), Nonce: n}, nil
}

// Verify proves the submitter controls address, reduces the placement
// set and writes the persona record. The nonce is spent no matter what;
// a failed attempt always needs a fresh prepare.
func (p *Protocol) Verify(ctx context.Context, placements []model.Placement, address, signatureHex, n string) (Result, error) {
	if !common.IsHexAddress(address) {
		return Result{}, ErrInvalidAddress
	}

	lock := p.addressLock(address)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !p.nonces.Consume(address, n) {
		metrics.RecordCommitFailure()
		p.logger.Warn(ctx, "commit with unusable nonce", logger.String("address", address))
		return Result{}, ErrUnauthorized
	}

	sig, err := chain.ParseSignature(signatureHex)
	if err != nil {
		metrics.RecordCommitFailure()
		return Result{}, ErrUnauthorized
	}
	if !chain.Verify(Message(n), sig, address) {
		metrics.RecordCommitFailure()
		p.logger.Warn(ctx, "commit signed by wrong wallet", logger.String("address", address))
		return Result{}, ErrUnauthorized
	}

	persona, err := alignment.Reduce(placements)
	if err != nil {
		metrics.RecordCommitFailure()
		return Result{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	txHash, err := p.writer.SetPersona(ctx, address, persona)
	if err != nil {
		metrics.RecordCommitFailure()
		return Result{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	metrics.RecordCommitVerified()
	p.logger.Info(ctx, "snapshot committed",
		logger.String("address", address),
		logger.String("tx", txHash),
		logger.String("trait", persona.PrimaryTrait),
		logger.Int("placements", len(placements)),
	)
	return Result{Success: true, TransactionHash: txHash}, nil
}

// addressLock returns the per-address verify mutex. The key is the
// checksummed form so mixed casings of one wallet share a lock.
func (p *Protocol) addressLock(address string) *sync.Mutex {
	key := common.HexToAddress(address).Hex()
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.locks[key] = l
	return l
}

package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
)

// Contract ABIs, trimmed to the surface this service touches.
const (
	registryABI = `[
		{"type":"function","name":"setPersona","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"lawfulChaotic","type":"int8"},{"name":"goodEvil","type":"int8"},{"name":"reportHash","type":"bytes32"},{"name":"primaryTrait","type":"string"}],"outputs":[]},
		{"type":"function","name":"getPersona","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"lawfulChaotic","type":"int8"},{"name":"goodEvil","type":"int8"},{"name":"reportHash","type":"bytes32"},{"name":"primaryTrait","type":"string"},{"name":"timestamp","type":"uint64"},{"name":"exists","type":"bool"}]}
	]`

	nftABI = `[
		{"type":"function","name":"requestMint","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[]},
		{"type":"function","name":"tokenOf","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"tokenId","type":"uint256"},{"name":"fulfilled","type":"bool"}]},
		{"type":"event","name":"MintFulfilled","inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":false}],"anonymous":false}
	]`
)

// mintFulfilledTopic is the keccak topic of MintFulfilled(address,uint256).
var mintFulfilledTopic = crypto.Keccak256Hash([]byte("MintFulfilled(address,uint256)"))

// Registry is the on-chain persona surface the service depends on.
type Registry interface {
	// SetPersona writes the reduced persona for address, waits for the
	// transaction to mine and returns its hash.
	SetPersona(ctx context.Context, address string, persona model.PersonaData) (string, error)

	// GetPersona reads the committed snapshot for address.
	GetPersona(ctx context.Context, address string) (model.PersonaSnapshot, error)

	// RequestMint submits an operator-signed mint request for address.
	RequestMint(ctx context.Context, address string) (string, error)

	// TokenOf reads the minted token for address, if any.
	TokenOf(ctx context.Context, address string) (tokenID uint64, fulfilled bool, err error)

	// SubscribeMints streams fulfilled token ids for address. The
	// returned cancel func tears the subscription down.
	SubscribeMints(ctx context.Context, address string) (<-chan uint64, func(), error)
}

// EthRegistry implements Registry against live contracts.
type EthRegistry struct {
	client     *ethclient.Client
	registry   *bind.BoundContract
	nft        *bind.BoundContract
	nftAddress common.Address
	nftParsed  abi.ABI
	operator   *ecdsa.PrivateKey
	chainID    *big.Int
	logger     logger.Logger
}

// NewEthRegistry dials the RPC endpoint and binds both contracts.
func NewEthRegistry(rpcURL, registryAddress, nftAddress, operatorKeyHex string, chainID int64) (*EthRegistry, error) {
	if !common.IsHexAddress(registryAddress) || !common.IsHexAddress(nftAddress) {
		return nil, ErrInvalidAddress
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	registryParsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	nftParsed, err := abi.JSON(strings.NewReader(nftABI))
	if err != nil {
		return nil, fmt.Errorf("parse nft abi: %w", err)
	}

	operator, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	nftAddr := common.HexToAddress(nftAddress)
	return &EthRegistry{
		client:     client,
		registry:   bind.NewBoundContract(common.HexToAddress(registryAddress), registryParsed, client, client, client),
		nft:        bind.NewBoundContract(nftAddr, nftParsed, client, client, client),
		nftAddress: nftAddr,
		nftParsed:  nftParsed,
		operator:   operator,
		chainID:    big.NewInt(chainID),
		logger:     logger.Get().Named("registry"),
	}, nil
}

// Close releases the RPC connection.
func (r *EthRegistry) Close() {
	r.client.Close()
}

func (r *EthRegistry) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(r.operator, r.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (r *EthRegistry) waitMined(ctx context.Context, tx *types.Transaction) (string, error) {
	receipt, err := bind.WaitMined(ctx, r.client, tx)
	if err != nil {
		return "", fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%w: %s", ErrTxFailed, tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}

// SetPersona writes the persona record, overwriting any prior commit.
func (r *EthRegistry) SetPersona(ctx context.Context, address string, persona model.PersonaData) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}

	opts, err := r.transactor(ctx)
	if err != nil {
		return "", err
	}

	tx, err := r.registry.Transact(opts, "setPersona",
		common.HexToAddress(address),
		persona.LawfulChaotic,
		persona.GoodEvil,
		persona.ReportHash,
		persona.PrimaryTrait,
	)
	if err != nil {
		return "", fmt.Errorf("set persona: %w", err)
	}

	r.logger.Info(ctx, "persona commit submitted",
		logger.String("address", address),
		logger.String("tx", tx.Hash().Hex()),
	)
	return r.waitMined(ctx, tx)
}

// GetPersona reads the committed snapshot for address.
func (r *EthRegistry) GetPersona(ctx context.Context, address string) (model.PersonaSnapshot, error) {
	if !common.IsHexAddress(address) {
		return model.PersonaSnapshot{}, ErrInvalidAddress
	}

	var out []interface{}
	err := r.registry.Call(&bind.CallOpts{Context: ctx}, &out, "getPersona", common.HexToAddress(address))
	if err != nil {
		return model.PersonaSnapshot{}, fmt.Errorf("get persona: %w", err)
	}

	hash, _ := out[2].([32]byte)
	return model.PersonaSnapshot{
		LawfulChaotic: int(out[0].(int8)),
		GoodEvil:      int(out[1].(int8)),
		ReportHash:    hexutil.Encode(hash[:]),
		PrimaryTrait:  out[3].(string),
		Timestamp:     int64(out[4].(uint64)),
		Exists:        out[5].(bool),
	}, nil
}

// RequestMint submits an operator-signed mint request for address.
func (r *EthRegistry) RequestMint(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}

	opts, err := r.transactor(ctx)
	if err != nil {
		return "", err
	}

	tx, err := r.nft.Transact(opts, "requestMint", common.HexToAddress(address))
	if err != nil {
		return "", fmt.Errorf("request mint: %w", err)
	}
	return r.waitMined(ctx, tx)
}

// TokenOf reads the minted token for address.
func (r *EthRegistry) TokenOf(ctx context.Context, address string) (uint64, bool, error) {
	if !common.IsHexAddress(address) {
		return 0, false, ErrInvalidAddress
	}

	var out []interface{}
	err := r.nft.Call(&bind.CallOpts{Context: ctx}, &out, "tokenOf", common.HexToAddress(address))
	if err != nil {
		return 0, false, fmt.Errorf("token of: %w", err)
	}

	tokenID, _ := out[0].(*big.Int)
	fulfilled, _ := out[1].(bool)
	if tokenID == nil {
		return 0, fulfilled, nil
	}
	return tokenID.Uint64(), fulfilled, nil
}

// SubscribeMints streams fulfilled token ids for address via a filtered
// log subscription.
func (r *EthRegistry) SubscribeMints(ctx context.Context, address string) (<-chan uint64, func(), error) {
	if !common.IsHexAddress(address) {
		return nil, nil, ErrInvalidAddress
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{r.nftAddress},
		Topics: [][]common.Hash{
			{mintFulfilledTopic},
			{common.BytesToHash(common.HexToAddress(address).Bytes())},
		},
	}

	logs := make(chan types.Log)
	sub, err := r.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe mint logs: %w", err)
	}

	tokens := make(chan uint64)
	done := make(chan struct{})
	go func() {
		defer close(tokens)
		for {
			select {
			case <-done:
				return
			case err := <-sub.Err():
				if err != nil {
					r.logger.Warn(ctx, "mint subscription dropped", logger.Error(err))
				}
				return
			case lg := <-logs:
				values, err := r.nftParsed.Unpack("MintFulfilled", lg.Data)
				if err != nil {
					r.logger.Warn(ctx, "undecodable mint log", logger.Error(err))
					continue
				}
				tokenID, ok := values[0].(*big.Int)
				if !ok {
					continue
				}
				select {
				case tokens <- tokenID.Uint64():
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(done)
		})
	}
	return tokens, cancel, nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"wallet_indexer/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

// JSON-RPC error code used by several providers for "limit exceeded".
const rpcLimitExceededCode = -32005

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// EVMClient speaks JSON-RPC to one EVM chain endpoint.
type EVMClient struct {
	chain     entity.Chain
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// DialEVMClient connects to endpoint. For HTTP endpoints no request is made until the first call.
func DialEVMClient(ctx context.Context, chain entity.Chain, endpoint string, httpClient *http.Client) (*EVMClient, error) {
	initParsedERC20ABI()

	var opts []rpc.ClientOption
	if httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}
	rpcClient, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, entity.NewSyncError(entity.KindConfig, chain, "dial", fmt.Errorf("failed to connect to RPC %s: %w", endpoint, err))
	}
	return &EVMClient{
		chain:     chain,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// BlockNumber returns the chain head.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, classifyRPCError(c.chain, "eth_blockNumber", err)
	}
	return head, nil
}

// GetBalances executes requests as a single JSON-RPC batch pinned to block.
// Results are returned in request order. Any failing element fails the call.
func (c *EVMClient) GetBalances(ctx context.Context, block uint64, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	if len(requests) == 0 {
		return []entity.BalanceResultItem{}, nil
	}

	blockTag := hexutil.EncodeUint64(block)
	batchElems := make([]rpc.BatchElem, len(requests))

	for i, reqItem := range requests {
		owner := common.HexToAddress(reqItem.WalletAddress)
		switch reqItem.Type {
		case entity.NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{owner, blockTag},
				Result: new(hexutil.Big),
			}
		case entity.TxCountRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getTransactionCount",
				Args:   []interface{}{owner, blockTag},
				Result: new(hexutil.Uint64),
			}
		case entity.TokenBalanceRequest:
			callData := make([]byte, 0, len(erc20MethodID)+32)
			callData = append(callData, erc20MethodID...)
			callData = append(callData, common.LeftPadBytes(owner.Bytes(), 32)...)
			callArgs := map[string]interface{}{
				"to":   common.HexToAddress(reqItem.Token.Address),
				"data": hexutil.Bytes(callData),
			}
			batchElems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{callArgs, blockTag},
				Result: new(hexutil.Bytes),
			}
		default:
			return nil, entity.NewSyncError(entity.KindConfig, c.chain, "batch",
				fmt.Errorf("unknown balance request type %d", reqItem.Type))
		}
	}

	if err := c.rpcClient.BatchCallContext(ctx, batchElems); err != nil {
		return nil, classifyRPCError(c.chain, "batch", err)
	}

	results := make([]entity.BalanceResultItem, len(requests))
	for i, elem := range batchElems {
		req := requests[i]
		results[i].Request = req
		if elem.Error != nil {
			return nil, classifyRPCError(c.chain, elem.Method,
				fmt.Errorf("wallet %s: %w", req.WalletAddress, elem.Error))
		}

		switch req.Type {
		case entity.NativeBalanceRequest:
			v, ok := elem.Result.(*hexutil.Big)
			if !ok || v == nil {
				return nil, entity.NewSyncError(entity.KindParse, c.chain, elem.Method,
					fmt.Errorf("unexpected result for wallet %s", req.WalletAddress))
			}
			results[i].Value = new(big.Int).Set((*big.Int)(v))
		case entity.TxCountRequest:
			v, ok := elem.Result.(*hexutil.Uint64)
			if !ok || v == nil {
				return nil, entity.NewSyncError(entity.KindParse, c.chain, elem.Method,
					fmt.Errorf("unexpected result for wallet %s", req.WalletAddress))
			}
			results[i].Value = new(big.Int).SetUint64(uint64(*v))
		case entity.TokenBalanceRequest:
			raw, ok := elem.Result.(*hexutil.Bytes)
			if !ok || raw == nil {
				return nil, entity.NewSyncError(entity.KindParse, c.chain, elem.Method,
					fmt.Errorf("unexpected result for %s of wallet %s", req.Token.Symbol, req.WalletAddress))
			}
			value, err := unpackBalanceOf(*raw)
			if err != nil {
				return nil, entity.NewSyncError(entity.KindParse, c.chain, elem.Method,
					fmt.Errorf("%s of wallet %s: %w", req.Token.Symbol, req.WalletAddress, err))
			}
			results[i].Value = value
		}
	}
	return results, nil
}

// Close releases the underlying connection.
func (c *EVMClient) Close() {
	c.rpcClient.Close()
}

// unpackBalanceOf decodes a balanceOf return value. An empty result (no contract
// code at the address) counts as zero.
func unpackBalanceOf(raw []byte) (*big.Int, error) {
	if len(raw) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := parsedERC20ABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result %s: %w", hexutil.Encode(raw), err)
	}
	if len(unpacked) == 0 {
		return nil, errors.New("balanceOf unpack returned no data")
	}
	value, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", unpacked[0])
	}
	return value, nil
}

// classifyRPCError maps go-ethereum transport and JSON-RPC errors onto the error taxonomy.
func classifyRPCError(chain entity.Chain, op string, err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return entity.NewSyncError(entity.KindRateLimit, chain, op, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == rpcLimitExceededCode {
			return entity.NewSyncError(entity.KindRateLimit, chain, op, err)
		}
		return entity.NewSyncError(entity.KindNetwork, chain, op, err)
	}
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return entity.NewSyncError(entity.KindParse, chain, op, err)
	}
	return entity.ClassifyTransportError(chain, op, err)
}

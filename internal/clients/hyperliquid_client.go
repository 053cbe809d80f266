package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidClient holds the SDK handle for the monitored wallet.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
	signerAddr  string
}

// NewHyperliquidClient builds the exchange handle. walletAddress is the account whose
// state is read; when empty the address derived from the key is used. The two differ
// when the key belongs to an API (agent) wallet.
func NewHyperliquidClient(ctx context.Context, privateKeyHex, walletAddress, baseURL string) (*HyperliquidClient, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	signerAddr, err := AddressFromKey(privateKey)
	if err != nil {
		return nil, err
	}

	accountAddr := signerAddr
	if walletAddress != "" {
		if !common.IsHexAddress(walletAddress) {
			return nil, errors.Errorf("invalid wallet address %q", walletAddress)
		}
		accountAddr = common.HexToAddress(walletAddress).Hex()
	}

	// empty metas skip the asset-universe download; account reads do not map assets
	ex := hyperliquid.NewExchange(
		ctx,
		privateKey,
		baseURL,
		&hyperliquid.Meta{},
		"",
		accountAddr,
		&hyperliquid.SpotMeta{},
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr, signerAddr: signerAddr}, nil
}

// ParsePrivateKey decodes a hex private key with or without the 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key := strings.TrimSpace(privateKeyHex)
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}
	if key == "" {
		return nil, errors.New("private key is empty")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	return privateKey, nil
}

// AddressFromKey derives the checksummed account address of the key.
func AddressFromKey(privateKey *ecdsa.PrivateKey) (string, error) {
	pub := privateKey.Public()
	pubECDSA, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return "", errors.New("error casting public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*pubECDSA).Hex(), nil
}

func (c *HyperliquidClient) Info() *hyperliquid.Info { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string  { return c.accountAddr }
func (c *HyperliquidClient) SignerAddress() string   { return c.signerAddr }

// IsAgentWallet reports whether the key signs for a different account.
func (c *HyperliquidClient) IsAgentWallet() bool {
	return !strings.EqualFold(c.accountAddr, c.signerAddr)
}

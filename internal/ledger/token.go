package ledger

import (
	"fmt"
	"strings"
)

// TokenKind 区分原生币与同质化代币
type TokenKind uint8

const (
	TokenNative TokenKind = iota
	TokenFungible
)

// NativeTokenName is the textual form of the native currency.
const NativeTokenName = "native"

const nativeAlias = "near"

// TokenID identifies an asset. The zero value is the native currency.
type TokenID struct {
	Kind     TokenKind
	Contract string
}

func NativeToken() TokenID {
	return TokenID{Kind: TokenNative}
}

func FungibleToken(contract string) TokenID {
	return TokenID{Kind: TokenFungible, Contract: contract}
}

func (t TokenID) IsNative() bool {
	return t.Kind == TokenNative
}

func (t TokenID) String() string {
	if t.IsNative() {
		return NativeTokenName
	}
	return t.Contract
}

// ParseTokenID 解析 String() 的输出："native" 或代币合约地址。
// Storage keys go through this; it accepts no aliases.
func ParseTokenID(s string) (TokenID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return TokenID{}, fmt.Errorf("%w: empty token id", ErrInvalidArgument)
	case NativeTokenName:
		return NativeToken(), nil
	}
	return FungibleToken(s), nil
}

// ParseTokenParam parses a client-supplied token. Besides ParseTokenID's
// forms it accepts "near" for the native currency.
func ParseTokenParam(s string) (TokenID, error) {
	if strings.EqualFold(strings.TrimSpace(s), nativeAlias) {
		return NativeToken(), nil
	}
	return ParseTokenID(s)
}

func (t TokenID) validate() error {
	if t.Kind == TokenFungible && t.Contract == "" {
		return fmt.Errorf("%w: fungible token without contract", ErrInvalidArgument)
	}
	if t.Kind > TokenFungible {
		return fmt.Errorf("%w: unknown token kind %d", ErrInvalidArgument, t.Kind)
	}
	return nil
}

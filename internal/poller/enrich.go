package poller

import (
	"evmindexer/internal/chains"
	"evmindexer/internal/store"
)

// enrichedFields is the best-effort maker/taker resolution for a single-chain
// Fusion fill, derived purely from the ERC-20 transfers that rode along in
// the same transaction.
type enrichedFields struct {
	Maker       string
	MakerToken  string
	TakerToken  string
	MakerAmount string
	TakerAmount string
}

type tokenValue struct {
	token string
	value string
}

// excludedRouters are addresses that can appear as a transfer counterparty
// purely because they routed the swap, not because they're the maker. Only
// the router deployed on the observing chain is excluded, since that's the
// only one this indexer can ever see transfers for.
func excludedRouters(chainID uint32) map[string]bool {
	return map[string]bool{
		routerAddressLower(chainID): true,
	}
}

func routerAddressLower(chainID uint32) string {
	return lowerAddr(chains.RouterAddress(chainID))
}

func lowerAddr(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// enrichMakerTaker builds sent/received maps keyed by address, excludes
// known router addresses, then picks any address present in both maps
// whose first sent token differs from its first received token. If no such
// address exists, the fields are left unresolved rather than guessing.
func enrichMakerTaker(transfers []store.Transfer, chainID uint32) *enrichedFields {
	excluded := excludedRouters(chainID)

	sentBy := make(map[string][]tokenValue)
	receivedBy := make(map[string][]tokenValue)
	var order []string
	seen := make(map[string]bool)

	for _, t := range transfers {
		if !excluded[t.FromAddr] {
			sentBy[t.FromAddr] = append(sentBy[t.FromAddr], tokenValue{t.Token, t.Value})
			if !seen[t.FromAddr] {
				seen[t.FromAddr] = true
				order = append(order, t.FromAddr)
			}
		}
		if !excluded[t.ToAddr] {
			receivedBy[t.ToAddr] = append(receivedBy[t.ToAddr], tokenValue{t.Token, t.Value})
			if !seen[t.ToAddr] {
				seen[t.ToAddr] = true
				order = append(order, t.ToAddr)
			}
		}
	}

	for _, addr := range order {
		sent, hasSent := sentBy[addr]
		received, hasReceived := receivedBy[addr]
		if !hasSent || !hasReceived {
			continue
		}
		if sent[0].token == received[0].token {
			continue
		}
		return &enrichedFields{
			Maker:       addr,
			MakerToken:  sent[0].token,
			MakerAmount: sent[0].value,
			TakerToken:  received[0].token,
			TakerAmount: received[0].value,
		}
	}
	return nil
}

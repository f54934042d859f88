// Package chains holds the static registry of supported networks and the
// contract addresses / event topics the indexer watches on each of them.
package chains

// Topic0 constants for every event the indexer decodes.
const (
	TransferTopic          = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	SrcEscrowCreatedTopic  = "0x0e534c62f0afd2fa0f0fa71198e8aa2d549f24daf2bb47de0d5486c7ce9288ca"
	DstEscrowCreatedTopic  = "0x4d81cba2e6bb297be9304a3fd015ef78782b99f914a881ee9bd2f93291ee6eab"
	EscrowWithdrawalTopic  = "0xe346f5c97a360db5188bfa5d3ec5f0583abde420c6ba4d08b6cfe61addc17105"
	EscrowCancelledTopic   = "0x6e3be9294e58d10b9c8053cfd5e09871b67e442fe394d6b0870d336b9df984a9"
	OrderFilledTopic = "0xfec331350fce78ba658e082a71da20ac9f8d798a99b3c79681c8440cbfe77e07"
	// OrderCancelledTopic does not match the canonical
	// keccak256("OrderCancelled(bytes32,uint256)") signature; its correct
	// value could not be confirmed against a deployed router ABI, and
	// inventing one risks silently misrouting unrelated logs. See DESIGN.md
	// for the decision record. Until verified, this is set equal to
	// OrderFilledTopic, so the OR-filter in the poller effectively only
	// matches OrderFilled today; fills are unaffected and cancellations are
	// not observed.
	OrderCancelledTopic = OrderFilledTopic

)

// EscrowFactory is the 1inch Fusion+ escrow factory address, identical on
// every supported chain.
const EscrowFactory = "0xa7bcb4eac8964306f9e3764f67db6a7af6ddf99a"

// Aggregation Router V6 address, used on every chain except zkSync Era.
const AggregationRouterV6 = "0x111111125421ca6dc452d289314280a0f8842a65"

// zkSync Era (chain 324) deploys the router at a distinct address.
const zkSyncChainID = 324
const zkSyncAggregationRouter = "0x6fd4383cb451173d5f9304f041c7bcbf27d561ff"

// Network describes one configured chain.
type Network struct {
	ChainID uint32
	Name    string
	// Slug is the provider-specific network slug substituted into the
	// configured RPC URL template (e.g. "eth-mainnet" for Alchemy).
	Slug string
}

// Supported is the fixed set of chains this indexer watches; order is
// immaterial.
var Supported = []Network{
	{ChainID: 1, Name: "Ethereum", Slug: "eth-mainnet"},
	{ChainID: 10, Name: "OP Mainnet", Slug: "opt-mainnet"},
	{ChainID: 56, Name: "BNB Smart Chain", Slug: "bnb-mainnet"},
	{ChainID: 100, Name: "Gnosis", Slug: "gnosis-mainnet"},
	{ChainID: 130, Name: "Unichain", Slug: "unichain-mainnet"},
	{ChainID: 137, Name: "Polygon", Slug: "polygon-mainnet"},
	{ChainID: 146, Name: "Sonic", Slug: "sonic-mainnet"},
	{ChainID: 1868, Name: "Soneium", Slug: "soneium-mainnet"},
	{ChainID: 8453, Name: "Base", Slug: "base-mainnet"},
	{ChainID: 42161, Name: "Arbitrum", Slug: "arb-mainnet"},
	{ChainID: 43114, Name: "Avalanche", Slug: "avax-mainnet"},
	{ChainID: 57073, Name: "Ink", Slug: "ink-mainnet"},
	{ChainID: 59144, Name: "Linea", Slug: "linea-mainnet"},
}

// RouterAddress returns the Aggregation Router V6 address deployed on the
// given chain, accounting for zkSync Era's distinct deployment.
func RouterAddress(chainID uint32) string {
	if chainID == zkSyncChainID {
		return zkSyncAggregationRouter
	}
	return AggregationRouterV6
}

// ByChainID looks up a configured network by its chain id.
func ByChainID(chainID uint32) (Network, bool) {
	for _, n := range Supported {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

package store

// Status values for FusionPlusSwap's two independent state machines.
const (
	StatusPending    = "pending"
	StatusCreated    = "created"
	StatusWithdrawn  = "withdrawn"
	StatusCancelled  = "cancelled"
)

// Status values for FusionSwap.
const (
	FusionFilled    = "filled"
	FusionCancelled = "cancelled"
)

// SwapType labels applied to Transfer rows once a Fusion/Fusion+ event in the
// same transaction has been processed.
const (
	SwapTypeFusionPlus = "fusion_plus"
	SwapTypeFusion     = "fusion"
)

// Transfer is one ERC-20 Transfer(address,address,uint256) log.
// Unique by (ChainID, TxHash, LogIndex).
type Transfer struct {
	ChainID         uint32
	TxHash          string
	LogIndex        uint32
	Token           string
	FromAddr        string
	ToAddr          string
	Value           string
	BlockNumber     uint64
	BlockTimestamp  uint64
	SwapType        string // "" when unlabelled
	CreatedAt       uint64
}

// FusionPlusSwap is a cross-chain atomic swap correlated by OrderHash (and,
// secondarily, by Hashlock). The destination half is populated lazily as its
// chain's poller observes DstEscrowCreated.
type FusionPlusSwap struct {
	OrderHash string
	Hashlock  string
	Secret    string // "" until revealed

	SrcChainID        uint32
	SrcTxHash         string
	SrcBlockNumber    uint64
	SrcBlockTimestamp uint64
	SrcLogIndex       uint32
	SrcEscrowAddress  string
	SrcMaker          string
	SrcTaker          string
	SrcToken          string
	SrcAmount         string
	SrcSafetyDeposit  string
	SrcTimelocks      string
	SrcStatus         string

	DstChainID        uint32
	DstTxHash         string
	DstBlockNumber    uint64
	DstBlockTimestamp uint64
	DstLogIndex       uint32
	DstEscrowAddress  string
	DstMaker          string
	DstTaker          string
	DstToken          string
	DstAmount         string
	DstSafetyDeposit  string
	DstTimelocks      string
	DstStatus         string

	CreatedAt uint64
	UpdatedAt uint64
}

// FusionSwap is a single-chain fill (or cancellation) of a 1inch Aggregation
// Router order. Unique by (ChainID, TxHash, LogIndex).
type FusionSwap struct {
	OrderHash      string
	ChainID        uint32
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp uint64
	LogIndex       uint32
	Maker          string // "" if unresolved
	Taker          string // "" if unresolved
	MakerToken     string
	TakerToken     string
	MakerAmount    string
	TakerAmount    string
	Remaining      string
	IsPartialFill  bool
	Status         string
	CreatedAt      uint64
}

// Crypto2FiatEvent is an off-ramp order event. Unique by
// (ChainID, TxHash, LogIndex).
type Crypto2FiatEvent struct {
	OrderID        string
	Token          string
	Amount         string
	Recipient      string
	Metadata       string // "" if absent
	ChainID        uint32
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp uint64
	LogIndex       uint32
	CreatedAt      uint64
}

// CleanupCounts reports how many rows were deleted from each table by a TTL
// sweep.
type CleanupCounts struct {
	Transfers    int64
	FusionPlus   int64
	FusionSwaps  int64
	Crypto2Fiat  int64
}

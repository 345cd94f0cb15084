package types

// Height is a block's position in the finalized chain, counting up from
// zero at genesis. Heights stored in the finalized state always form the
// contiguous range [0, tip] — there are no gaps.
type Height uint64

// GenesisHeight is the height of the first block in any chain.
const GenesisHeight Height = 0

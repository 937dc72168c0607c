package types

// Network represents supported EVM networks
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkLocal       Network = "local"
)

var networkChainIDs = map[Network]uint64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
	NetworkLocal:       31337,
}

// ChainID returns the EIP-155 chain id of a known network, or 0.
func (n Network) ChainID() uint64 {
	return networkChainIDs[n]
}

func (n Network) IsKnown() bool {
	_, ok := networkChainIDs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkLocal
}

func (n Network) String() string {
	return string(n)
}

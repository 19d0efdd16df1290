package chain

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// domainSalt domain-separates the home-identity hash from any other use of
// chainhash.HashB in this module, mirroring the home_domain_hash scheme
// optics-core's utils.rs derives for its own domain separation.
var domainSalt = []byte("WATCHER_DOMAIN")

// DomainHash derives a deterministic root identifying a home by its
// numeric domain id, used by adapters that need a stable on-chain
// identifier for a home distinct from its contract address.
func DomainHash(homeDomain uint32) Root {
	buf := make([]byte, 4+len(domainSalt))
	buf[0] = byte(homeDomain >> 24)
	buf[1] = byte(homeDomain >> 16)
	buf[2] = byte(homeDomain >> 8)
	buf[3] = byte(homeDomain)
	copy(buf[4:], domainSalt)
	return chainhash.HashH(buf)
}

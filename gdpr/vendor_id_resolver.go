package gdpr

import (
	"strings"

	"github.com/prebid/prebid-privacy/config"
)

// VendorIDResolver maps a bidder name to its GVL vendor id.
type VendorIDResolver interface {
	Resolve(bidder string) (uint16, bool)
}

type vendorIDResolver struct {
	catalog        config.BidderInfos
	requestAliases map[string]string
	aliasGVLIDs    map[string]uint16
}

// NewVendorIDResolver resolves vendor ids through the bidder catalog only.
func NewVendorIDResolver(catalog config.BidderInfos) VendorIDResolver {
	return &vendorIDResolver{catalog: catalog}
}

// NewRequestVendorIDResolver also honours the aliases declared by an individual request. An explicit
// alias vendor id takes precedence over the catalog entry of the aliased bidder.
func NewRequestVendorIDResolver(catalog config.BidderInfos, requestAliases map[string]string, aliasGVLIDs map[string]uint16) VendorIDResolver {
	return &vendorIDResolver{
		catalog:        catalog,
		requestAliases: requestAliases,
		aliasGVLIDs:    aliasGVLIDs,
	}
}

func (r *vendorIDResolver) Resolve(bidder string) (uint16, bool) {
	if id, ok := r.aliasGVLIDs[bidder]; ok && id != 0 {
		return id, true
	}
	if root, ok := r.requestAliases[bidder]; ok {
		bidder = root
	}
	return r.catalog.VendorID(strings.ToLower(bidder))
}

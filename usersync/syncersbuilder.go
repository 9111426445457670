package usersync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prebid/prebid-privacy/config"
)

// SyncerBuildError represents an error with building a syncer.
type SyncerBuildError struct {
	Bidder    string
	SyncerKey string
	Err       error
}

// Error implements the standard error interface.
func (e SyncerBuildError) Error() string {
	return fmt.Sprintf("cannot create syncer for bidder %s with key %s: %v", e.Bidder, e.SyncerKey, e.Err)
}

// familyMember is a bidder syncing under a cookie family.
type familyMember struct {
	bidder  string
	aliasOf string
	syncer  config.Syncer
}

func (m familyMember) hasEndpoints() bool {
	return m.syncer.IFrame != nil || m.syncer.Redirect != nil
}

// BuildSyncers creates the syncer of every enabled bidder with sync endpoints, keyed by bidder name. Bidders
// sharing a cookie family use the endpoints of the single bidder defining them.
func BuildSyncers(hostConfig *config.Configuration, catalog config.BidderInfos) (map[string]Syncer, []error) {
	families := groupByCookieFamily(catalog)

	hostUserSync := hostConfig.UserSync
	if hostUserSync.ExternalURL == "" {
		hostUserSync.ExternalURL = hostConfig.ExternalURL
	}

	keys := make([]string, 0, len(families))
	for key := range families {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	syncers := make(map[string]Syncer, len(catalog))
	for _, key := range keys {
		owner, err := endpointOwner(families[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, member := range families[key] {
			syncer, err := NewSyncer(hostUserSync, owner.syncer, member.bidder)
			if err != nil {
				errs = append(errs, SyncerBuildError{Bidder: owner.bidder, SyncerKey: key, Err: err})
				continue
			}
			syncers[member.bidder] = syncer
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return syncers, nil
}

// groupByCookieFamily collects the enabled bidders declaring a syncer. The family defaults to the bidder
// name. Members are ordered by bidder name.
func groupByCookieFamily(catalog config.BidderInfos) map[string][]familyMember {
	families := make(map[string][]familyMember)
	for _, name := range catalog.Names() {
		info := catalog[name]
		if info.Disabled || info.Syncer == nil {
			continue
		}

		// a syncer may only carry a key to join the cookie family of another bidder
		syncer := *info.Syncer
		if syncer.Key == "" && syncer.IFrame == nil && syncer.Redirect == nil {
			continue
		}
		if syncer.Key == "" {
			syncer.Key = name
		}
		families[syncer.Key] = append(families[syncer.Key], familyMember{bidder: name, aliasOf: info.AliasOf, syncer: syncer})
	}
	return families
}

// endpointOwner picks the member whose endpoints the family syncs with. Only one root bidder may define
// endpoints. Aliases may define them too, but only when they share their root bidder's family.
func endpointOwner(members []familyMember) (familyMember, error) {
	if len(members) == 1 {
		return members[0], nil
	}

	var (
		names, roots, aliasParents []string
		rootOwner, aliasOwner      *familyMember
	)
	inFamily := make(map[string]struct{}, len(members))
	for i, member := range members {
		names = append(names, member.bidder)
		inFamily[member.bidder] = struct{}{}
		if !member.hasEndpoints() {
			continue
		}
		if member.aliasOf == "" {
			roots = append(roots, member.bidder)
			rootOwner = &members[i]
		} else {
			aliasParents = append(aliasParents, member.aliasOf)
			aliasOwner = &members[i]
		}
	}

	if rootOwner == nil && aliasOwner == nil {
		return familyMember{}, fmt.Errorf("bidders %s share the same syncer key, but none define endpoints (iframe and/or redirect)", strings.Join(names, ", "))
	}
	if len(roots) > 1 {
		return familyMember{}, fmt.Errorf("bidders %s define endpoints (iframe and/or redirect) for the same syncer key, but only one bidder is permitted to define endpoints", strings.Join(roots, ", "))
	}

	var invalidAliases []string
	for _, parent := range aliasParents {
		if _, ok := inFamily[parent]; !ok {
			invalidAliases = append(invalidAliases, parent)
		}
	}
	if len(invalidAliases) > 0 {
		sort.Strings(invalidAliases)
		return familyMember{}, fmt.Errorf("found aliases whose syncer key conflicts with a bidder other than their parent, aliases: %s", strings.Join(invalidAliases, ", "))
	}

	if rootOwner != nil {
		return *rootOwner, nil
	}
	return *aliasOwner, nil
}

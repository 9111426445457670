package cookiesync

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/macros"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/ccpa"
	"github.com/prebid/prebid-privacy/usersync"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// TCFChecker answers the TCF questions of a cookie sync.
type TCFChecker interface {
	IsAllowedForHostVendorID(ctx context.Context, tcfContext gdpr.TCFContext) gdpr.HostVendorTCFResponse
	ResultForBidderNames(ctx context.Context, bidders []string, tcfContext gdpr.TCFContext, account config.AccountGDPR) gdpr.TCFResponse[string]
}

// CCPAChecker decides whether CCPA is enforced for a request.
type CCPAChecker interface {
	IsCCPAEnforced(policy ccpa.Policy, account config.Account, channel config.ChannelType) bool
}

// CoopSyncBidderProvider returns the cooperative bidders of a request.
type CoopSyncBidderProvider interface {
	CoopSyncBidders(syncContext Context) []string
}

const unknownBidder = "unknown"

// Service filters the bidders of a cookie sync request and builds the sync urls of the survivors.
type Service struct {
	catalog       config.BidderInfos
	syncers       map[string]usersync.Syncer
	tcf           TCFChecker
	ccpa          CCPAChecker
	coop          CoopSyncBidderProvider
	shuffler      usersync.Shuffler
	metricsEngine metrics.MetricsEngine

	hostCookie   config.HostCookie
	externalURL  string
	defaultLimit int
	maxLimit     int
}

func NewService(cfg *config.Configuration, catalog config.BidderInfos, syncers map[string]usersync.Syncer, tcf TCFChecker, ccpaChecker CCPAChecker, coop CoopSyncBidderProvider, shuffler usersync.Shuffler, metricsEngine metrics.MetricsEngine) (*Service, error) {
	if cfg.UserSync.DefaultLimit <= 0 {
		return nil, errors.New("Default cookie-sync limit should be greater than 0")
	}
	if cfg.UserSync.MaxLimit < cfg.UserSync.DefaultLimit {
		return nil, errors.New("Max cookie-sync limit should be greater or equal than limit")
	}

	externalURL := cfg.UserSync.ExternalURL
	if externalURL == "" {
		externalURL = cfg.ExternalURL
	}

	return &Service{
		catalog:       catalog,
		syncers:       syncers,
		tcf:           tcf,
		ccpa:          ccpaChecker,
		coop:          coop,
		shuffler:      shuffler,
		metricsEngine: metricsEngine,
		hostCookie:    cfg.HostCookie,
		externalURL:   strings.TrimSuffix(externalURL, "/"),
		defaultLimit:  cfg.UserSync.DefaultLimit,
		maxLimit:      cfg.UserSync.MaxLimit,
	}, nil
}

// ProcessContext validates the request, resolves the limit and the bidders, then rejects every bidder
// which may not be synced.
func (s *Service) ProcessContext(ctx context.Context, syncContext Context) (Context, error) {
	if err := s.validate(syncContext); err != nil {
		return syncContext, err
	}

	syncContext.Limit = s.resolveLimit(syncContext)
	syncContext = s.resolveBidders(syncContext)

	syncContext = s.filterInvalidBidders(syncContext)
	syncContext = s.filterDisabledBidders(syncContext)
	syncContext = s.filterUnconfiguredBidders(syncContext)
	syncContext = s.filterDisabledUsersyncBidders(syncContext)
	syncContext = s.applyMethodFilter(syncContext)
	syncContext = s.filterByPrivacy(ctx, syncContext)
	syncContext = s.filterInSyncBidders(syncContext)

	return syncContext, nil
}

func (s *Service) validate(syncContext Context) error {
	if !syncContext.Cookie.AllowSyncs() {
		return &errortypes.Unauthorized{Message: "Sync is not allowed for this uids"}
	}

	if syncContext.Request.GDPR != nil && *syncContext.Request.GDPR == 1 && strings.TrimSpace(syncContext.Request.Consent) == "" {
		return &errortypes.BadInput{Message: "gdpr_consent is required if gdpr is 1"}
	}

	tcfContext := syncContext.Privacy.TCFContext
	if tcfContext.InGDPRScope && !tcfContext.ConsentValid {
		s.metricsEngine.RecordUserSyncTCFInvalid()
		return &errortypes.BadInput{Message: "Consent string is invalid"}
	}

	return nil
}

func (s *Service) resolveLimit(syncContext Context) int {
	cookieSync := syncContext.Account.CookieSync

	limit := ptrutil.ValueOrDefault(ptrutil.Coalesce(syncContext.Request.Limit, cookieSync.DefaultLimit, &s.defaultLimit))
	maxLimit := ptrutil.ValueOrDefault(ptrutil.Coalesce(cookieSync.MaxLimit, &s.maxLimit))
	if maxLimit <= 0 {
		maxLimit = math.MaxInt
	}

	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *Service) resolveBidders(syncContext Context) Context {
	requested := make([]string, len(syncContext.Request.Bidders))
	copy(requested, syncContext.Request.Bidders)
	s.shuffler.Shuffle(requested)

	syncContext.Bidders = NewBiddersContext(requested, s.coop.CoopSyncBidders(syncContext))
	return syncContext
}

func (s *Service) filterInvalidBidders(syncContext Context) Context {
	return s.rejectWhen(syncContext, RejectionInvalidBidder, func(bidder string) bool {
		return !s.catalog.IsValidName(bidder)
	})
}

func (s *Service) filterDisabledBidders(syncContext Context) Context {
	return s.rejectWhen(syncContext, RejectionDisabledBidder, func(bidder string) bool {
		return !s.catalog.IsActive(bidder)
	})
}

func (s *Service) filterUnconfiguredBidders(syncContext Context) Context {
	return s.rejectWhen(syncContext, RejectionUnconfiguredUsersync, func(bidder string) bool {
		return s.syncer(bidder) == nil
	})
}

func (s *Service) filterDisabledUsersyncBidders(syncContext Context) Context {
	return s.rejectWhen(syncContext, RejectionDisabledUsersync, func(bidder string) bool {
		syncerConfig, err := s.catalog.SyncerFor(bidder)
		return err == nil && !syncerConfig.IsEnabled()
	})
}

func (s *Service) rejectWhen(syncContext Context, reason RejectionReason, rejected func(bidder string) bool) Context {
	var bidders []string
	for _, bidder := range syncContext.Bidders.AllowedBidders() {
		if rejected(bidder) {
			bidders = append(bidders, bidder)
		}
	}
	syncContext.Bidders = syncContext.Bidders.WithRejectedBidders(bidders, reason)
	return syncContext
}

func (s *Service) applyMethodFilter(syncContext Context) Context {
	bidders := syncContext.Bidders
	for _, bidder := range bidders.AllowedBidders() {
		syncer := s.syncer(bidder)
		syncType, ok := syncContext.MethodChooser.Choose(bidder, syncer)
		if !ok {
			bidders = bidders.WithRejectedBidder(bidder, RejectionFilter)
			s.metricsEngine.RecordSyncerRequest(syncer.Key(), metrics.SyncerCookieSyncTypeNotSupported)
			continue
		}
		bidders = bidders.WithBidderUsersyncMethod(bidder, syncType)
	}
	syncContext.Bidders = bidders
	return syncContext
}

func (s *Service) filterByPrivacy(ctx context.Context, syncContext Context) Context {
	tcfContext := syncContext.Privacy.TCFContext
	allowed := syncContext.Bidders.AllowedBidders()
	if len(allowed) == 0 {
		return syncContext
	}

	if !s.tcf.IsAllowedForHostVendorID(ctx, tcfContext).VendorAllowed {
		syncContext.Bidders = syncContext.Bidders.WithRejectedBidders(allowed, RejectionTCF)
		return syncContext
	}

	bidders := syncContext.Bidders
	if s.ccpa.IsCCPAEnforced(syncContext.Privacy.Privacy.CCPA, syncContext.Account, config.ChannelWeb) {
		for _, bidder := range allowed {
			if s.catalog.CCPAEnforced(bidder) {
				bidders = bidders.WithRejectedBidder(bidder, RejectionCCPA)
				s.metricsEngine.RecordSyncerRequest(s.metricKey(bidder), metrics.SyncerCookieSyncCCPABlocked)
			}
		}
	}

	tcfBidders := bidders.AllowedBidders()
	if len(tcfBidders) > 0 {
		response := s.tcf.ResultForBidderNames(ctx, tcfBidders, tcfContext, syncContext.Account.GDPR)
		for _, bidder := range tcfBidders {
			if action, ok := response.Actions[bidder]; !ok || action.BlockPixelSync {
				bidders = bidders.WithRejectedBidder(bidder, RejectionTCF)
				s.metricsEngine.RecordSyncerRequest(s.metricKey(bidder), metrics.SyncerCookieSyncTCFBlocked)
			}
		}
	}

	for _, bidder := range bidders.AllowedBidders() {
		component := privacy.Component{Type: privacy.ComponentTypeBidder, Name: bidder}
		if !syncContext.Activities.IsAllowed(privacy.ActivitySyncUser, component) {
			bidders = bidders.WithRejectedBidder(bidder, RejectionActivity)
			s.metricsEngine.RecordSyncerRequest(s.metricKey(bidder), metrics.SyncerCookieSyncPrivacyBlocked)
		}
	}

	syncContext.Bidders = bidders
	return syncContext
}

func (s *Service) filterInSyncBidders(syncContext Context) Context {
	bidders := syncContext.Bidders
	for _, bidder := range bidders.AllowedBidders() {
		family := s.syncer(bidder).Key()
		if s.hostCookieUIDToSync(syncContext, family) == "" && syncContext.Cookie.HasLiveSync(family) {
			bidders = bidders.WithRejectedBidder(bidder, RejectionAlreadyInSync)
			s.metricsEngine.RecordSyncerRequest(family, metrics.SyncerCookieSyncAlreadySynced)
		}
	}
	syncContext.Bidders = bidders
	return syncContext
}

// PrepareResponse builds one sync per cookie family of the allowed bidders, requested bidders first,
// until the limit is reached.
func (s *Service) PrepareResponse(syncContext Context) Response {
	response := Response{
		Status:       statusNoCookie,
		BidderStatus: []BidderStatus{},
	}
	if syncContext.Cookie.HasAnyLiveSyncs() {
		response.Status = statusOK
	}

	toSync := s.biddersToSync(syncContext)
	userSyncPrivacy := s.userSyncPrivacy(syncContext)

	families := make(map[string]struct{}, len(toSync))
	for _, bidder := range toSync {
		syncer := s.syncer(bidder)
		family := syncer.Key()
		if _, done := families[family]; done {
			continue
		}
		families[family] = struct{}{}

		info, err := s.userSyncInfo(syncContext, bidder, syncer, userSyncPrivacy)
		if err != nil {
			glog.Errorf("Failed to get usersync info for %s: %v", bidder, err)
			continue
		}

		s.metricsEngine.RecordSyncerRequest(family, metrics.SyncerCookieSyncOK)
		response.BidderStatus = append(response.BidderStatus, BidderStatus{
			Bidder:   family,
			NoCookie: true,
			UserSync: info,
		})
	}

	if syncContext.Request.Debug {
		response.BidderStatus = append(response.BidderStatus, s.debugStatuses(syncContext, toSync)...)
	}

	return response
}

// biddersToSync returns the allowed requested bidders followed by the allowed cooperative ones, stopping
// once the number of distinct cookie families reaches the limit.
func (s *Service) biddersToSync(syncContext Context) []string {
	candidates := append(syncContext.Bidders.AllowedRequestedBidders(), syncContext.Bidders.AllowedCoopSyncBidders()...)

	families := make(map[string]struct{})
	var toSync []string
	for _, bidder := range candidates {
		if len(families) >= syncContext.Limit {
			break
		}
		families[s.syncer(bidder).Key()] = struct{}{}
		toSync = append(toSync, bidder)
	}
	return toSync
}

func (s *Service) userSyncInfo(syncContext Context, bidder string, syncer usersync.Syncer, userSyncPrivacy macros.UserSyncPrivacy) (*UserSyncInfo, error) {
	syncType, ok := syncContext.Bidders.UsersyncMethod(bidder)
	if !ok {
		syncType = syncer.DefaultSyncType()
	}

	if hostUID := s.hostCookieUIDToSync(syncContext, syncer.Key()); hostUID != "" {
		return &UserSyncInfo{
			URL:  s.hostCookieSyncURL(syncer.Key(), hostUID, syncType, userSyncPrivacy),
			Type: string(syncType),
		}, nil
	}

	sync, err := syncer.GetSync([]usersync.SyncType{syncType}, userSyncPrivacy)
	if err != nil {
		return nil, err
	}
	return &UserSyncInfo{URL: sync.URL, Type: string(sync.Type), SupportCORS: sync.SupportCORS}, nil
}

func (s *Service) hostCookieSyncURL(family, uid string, syncType usersync.SyncType, userSyncPrivacy macros.UserSyncPrivacy) string {
	format := "i"
	if syncType == usersync.SyncTypeIFrame {
		format = "b"
	}

	query := url.Values{}
	query.Set("bidder", family)
	query.Set("gdpr", userSyncPrivacy.GDPR)
	query.Set("gdpr_consent", userSyncPrivacy.GDPRConsent)
	query.Set("us_privacy", userSyncPrivacy.USPrivacy)
	query.Set("f", format)
	query.Set("uid", uid)
	return s.externalURL + "/setuid?" + query.Encode()
}

func (s *Service) userSyncPrivacy(syncContext Context) macros.UserSyncPrivacy {
	gdprSignal := gdpr.SignalNo
	if syncContext.Privacy.TCFContext.InGDPRScope {
		gdprSignal = gdpr.SignalYes
	}
	return macros.UserSyncPrivacy{
		GDPR:        gdprSignal.String(),
		GDPRConsent: syncContext.Request.Consent,
		USPrivacy:   syncContext.Request.USPrivacy,
	}
}

func (s *Service) debugStatuses(syncContext Context, toSync []string) []BidderStatus {
	var statuses []BidderStatus

	rejected := syncContext.Bidders.RejectedBidders()
	names := make([]string, 0, len(rejected))
	for bidder := range rejected {
		names = append(names, bidder)
	}
	sort.Strings(names)

	for _, bidder := range names {
		rejection := rejectionErrors[rejected[bidder]]
		requested := syncContext.Bidders.IsRequested(bidder)
		if (requested && rejection.whenRequested) || (!requested && syncContext.Bidders.IsCoopSync(bidder) && rejection.whenCoopSynced) {
			statuses = append(statuses, BidderStatus{Bidder: s.cookieFamily(bidder), Error: rejection.message})
		}
	}

	synced := make(map[string]struct{}, len(toSync))
	for _, bidder := range toSync {
		synced[bidder] = struct{}{}
	}

	for _, bidder := range syncContext.Bidders.AllowedRequestedBidders() {
		if _, ok := synced[bidder]; !ok {
			statuses = append(statuses, BidderStatus{Bidder: s.cookieFamily(bidder), Error: "limit reached"})
			continue
		}
		if s.catalog.ResolveAlias(bidder) != strings.ToLower(bidder) {
			statuses = append(statuses, BidderStatus{Bidder: bidder, Error: "synced as " + s.syncer(bidder).Key()})
		}
	}

	return statuses
}

func (s *Service) hostCookieUIDToSync(syncContext Context, family string) string {
	if syncContext.HTTPRequest == nil {
		return ""
	}
	return usersync.HostCookieUIDToSync(syncContext.HTTPRequest, syncContext.Cookie, &s.hostCookie, family)
}

func (s *Service) syncer(bidder string) usersync.Syncer {
	return s.syncers[strings.ToLower(bidder)]
}

// cookieFamily names the bidder by its syncer key, falling back to the bidder name when it has no syncer.
func (s *Service) cookieFamily(bidder string) string {
	if syncer := s.syncer(bidder); syncer != nil {
		return syncer.Key()
	}
	return bidder
}

func (s *Service) metricKey(bidder string) string {
	if syncer := s.syncer(bidder); syncer != nil {
		return syncer.Key()
	}
	return unknownBidder
}

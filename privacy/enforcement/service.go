package enforcement

import (
	"context"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy/ccpa"
)

// Config holds the host settings of the enforcement stages.
type Config struct {
	CCPAEnforce     bool
	LMTEnforce      bool
	DisabledMetrics config.DisabledMetrics
}

// NewConfig reads the enforcement settings of the host configuration.
func NewConfig(cfg *config.Configuration) Config {
	return Config{
		CCPAEnforce:     cfg.CCPA.Enforce,
		LMTEnforce:      cfg.LMT.Enforce,
		DisabledMetrics: cfg.Metrics.Disabled,
	}
}

// Service masks the user and device sent to each bidder of an auction. COPPA masks everything and
// ends enforcement; otherwise CCPA, TCF and activity rules are applied in that order.
type Service struct {
	definer       TCFDefiner
	lmtEnforce    bool
	coppa         *CoppaEnforcement
	ccpa          *CCPAEnforcement
	tcf           *TCFEnforcement
	activity      *ActivityEnforcement
	metricsEngine metrics.MetricsEngine
}

func NewService(catalog config.BidderInfos, definer TCFDefiner, metricsEngine metrics.MetricsEngine, cfg Config) *Service {
	return &Service{
		definer:       definer,
		lmtEnforce:    cfg.LMTEnforce,
		coppa:         NewCoppaEnforcement(),
		ccpa:          NewCCPAEnforcement(catalog, cfg.CCPAEnforce, metricsEngine),
		tcf:           NewTCFEnforcement(catalog, definer, cfg.LMTEnforce, cfg.DisabledMetrics, metricsEngine),
		activity:      NewActivityEnforcement(),
		metricsEngine: metricsEngine,
	}
}

// Mask returns one result per bidder present in either map, ordered by bidder name. The input users and
// devices are never modified.
func (s *Service) Mask(ctx context.Context, auction AuctionContext, bidderToUser map[string]*openrtb2.User, bidderToDevice map[string]*openrtb2.Device) ([]BidderPrivacyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := newResults(bidderToUser, bidderToDevice)

	if s.coppa.IsApplicable(auction) {
		s.metricsEngine.RecordRequestPrivacy(metrics.PrivacyLabels{COPPAEnforced: true})
		return s.coppa.Enforce(ctx, auction, results), nil
	}

	results = s.ccpa.Enforce(ctx, auction, results)
	results = s.tcf.Enforce(ctx, auction, results)
	results = s.activity.Enforce(ctx, auction, results)

	s.metricsEngine.RecordRequestPrivacy(s.privacyLabels(auction))
	return results, nil
}

// IsCCPAEnforced reports whether the policy opts out and CCPA is enabled for the account and channel.
func (s *Service) IsCCPAEnforced(policy ccpa.Policy, account config.Account, channel config.ChannelType) bool {
	return s.ccpa.IsEnforced(policy, account, channel)
}

func (s *Service) privacyLabels(auction AuctionContext) metrics.PrivacyLabels {
	policy := auction.Privacy.Privacy.CCPA
	tcfContext := auction.Privacy.TCFContext

	labels := metrics.PrivacyLabels{
		CCPAProvided: policy.Consent != "",
		CCPAEnforced: s.ccpa.IsEnforced(policy, auction.Account, auction.Channel),
		GDPREnforced: tcfContext.InGDPRScope,
	}
	if tcfContext.InGDPRScope {
		labels.GDPRTCFVersion = metrics.TCFVersionToValue(tcfContext.ConsentVersion())
	}
	if auction.Request != nil {
		labels.LMTEnforced = lmtPolicy(auction.Request.Device, auction).ShouldEnforce(s.lmtEnforce)
	}
	return labels
}

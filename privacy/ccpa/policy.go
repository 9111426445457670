package ccpa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"
)

const (
	ccpaVersion1      = '1'
	ccpaNo            = 'N'
	ccpaYes           = 'Y'
	ccpaNotApplicable = '-'
)

const (
	indexVersion                = 0
	indexExplicitNotice         = 1
	indexOptOutSale             = 2
	indexLSPACoveredTransaction = 3
)

const allBidders = "*"

// Policy represents the CCPA (us_privacy) regulatory information of a request.
type Policy struct {
	Consent       string
	NoSaleBidders []string
}

// ReadFromRequest extracts the CCPA regulatory information from an OpenRTB bid request. The openrtb 2.6
// regs.us_privacy field wins over the legacy regs.ext.us_privacy location.
func ReadFromRequest(req *openrtb2.BidRequest) (Policy, error) {
	if req == nil {
		return Policy{}, nil
	}

	var policy Policy
	if req.Regs != nil {
		policy.Consent = req.Regs.USPrivacy
		if policy.Consent == "" && len(req.Regs.Ext) > 0 {
			consent, err := jsonparser.GetString(req.Regs.Ext, "us_privacy")
			if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
				return Policy{}, fmt.Errorf("error reading request.regs.ext: %s", err)
			}
			policy.Consent = consent
		}
	}

	if len(req.Ext) > 0 {
		noSaleBidders, err := readNoSaleBidders(req.Ext)
		if err != nil {
			return Policy{}, fmt.Errorf("error reading request.ext.prebid.nosale: %s", err)
		}
		policy.NoSaleBidders = noSaleBidders
	}

	return policy, nil
}

func readNoSaleBidders(ext []byte) ([]string, error) {
	var (
		bidders []string
		itemErr error
	)
	_, err := jsonparser.ArrayEach(ext, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.String {
			itemErr = fmt.Errorf("expected a string but found %s", dataType)
			return
		}
		bidders = append(bidders, string(value))
	}, "prebid", "nosale")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bidders, itemErr
}

// Validate returns an error if the consent or the no-sale list is malformed.
func (p Policy) Validate() error {
	if err := ValidateConsent(p.Consent); err != nil {
		return fmt.Errorf("request.regs.ext.us_privacy %s", err.Error())
	}

	if err := ValidateNoSaleBidders(p.NoSaleBidders); err != nil {
		return fmt.Errorf("request.ext.prebid.nosale %s", err.Error())
	}

	return nil
}

// ValidateConsent returns an error if the CCPA consent string does not adhere to the IAB format.
func ValidateConsent(consent string) error {
	if consent == "" {
		return nil
	}

	if len(consent) != 4 {
		return errors.New("must contain 4 characters")
	}

	if consent[indexVersion] != ccpaVersion1 {
		return errors.New("must specify version 1")
	}

	var c byte

	c = consent[indexExplicitNotice]
	if c != ccpaNo && c != ccpaYes && c != ccpaNotApplicable {
		return errors.New("must specify 'N', 'Y', or '-' for the explicit notice")
	}

	c = consent[indexOptOutSale]
	if c != ccpaNo && c != ccpaYes && c != ccpaNotApplicable {
		return errors.New("must specify 'N', 'Y', or '-' for the opt-out sale")
	}

	c = consent[indexLSPACoveredTransaction]
	if c != ccpaNo && c != ccpaYes && c != ccpaNotApplicable {
		return errors.New("must specify 'N', 'Y', or '-' for the limited service provider agreement")
	}

	return nil
}

// ValidateNoSaleBidders rejects a wildcard mixed with named bidders.
func ValidateNoSaleBidders(noSaleBidders []string) error {
	if len(noSaleBidders) <= 1 {
		return nil
	}

	for _, bidder := range noSaleBidders {
		if bidder == allBidders {
			return errors.New("can only specify all bidders if no other bidders are provided")
		}
	}

	return nil
}

// IsOptOut returns true when the consent is valid and the user opted out of the sale of personal information.
func (p Policy) IsOptOut() bool {
	return ValidateConsent(p.Consent) == nil && p.Consent != "" && p.Consent[indexOptOutSale] == ccpaYes
}

// CanEnforce returns true when the policy is well formed.
func (p Policy) CanEnforce() bool {
	return p.Validate() == nil
}

// IsNoSaleBidder returns true when the bidder is exempt from enforcement. A wildcard exempts every bidder.
func (p Policy) IsNoSaleBidder(bidder string) bool {
	for _, b := range p.NoSaleBidders {
		if b == allBidders || strings.EqualFold(b, bidder) {
			return true
		}
	}
	return false
}

// ShouldEnforce returns true when the user opted out and the bidder is not exempt.
func (p Policy) ShouldEnforce(bidder string) bool {
	return p.CanEnforce() && p.IsOptOut() && !p.IsNoSaleBidder(bidder)
}

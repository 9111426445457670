package router

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/cookiesync"
	"github.com/prebid/prebid-privacy/endpoints"
	infoEndpoints "github.com/prebid/prebid-privacy/endpoints/info"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/geolocation"
	"github.com/prebid/prebid-privacy/geolocation/maxmind"
	metricsConf "github.com/prebid/prebid-privacy/metrics/config"
	"github.com/prebid/prebid-privacy/privacy/enforcement"
	"github.com/prebid/prebid-privacy/usersync"
)

// NoCache adds headers which stop browsers and proxies from caching responses.
type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

// Router serves the user sync and info endpoints. The privacy services it builds stay reachable so an
// embedding auction can mask its bid requests with the same configuration.
type Router struct {
	*httprouter.Router
	MetricsEngine *metricsConf.DetailedMetricsEngine
	TCFDefiner    *gdpr.TCFDefinerService
	Privacy       *enforcement.Service
	LegacyGDPR    *gdpr.GdprService
	Shutdown      func()
}

func New(cfg *config.Configuration, version, revision string) (r *Router, err error) {
	r = &Router{
		Router: httprouter.New(),
	}

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg, cfg.BidderInfos.Names())

	syncers, errs := usersync.BuildSyncers(cfg, cfg.BidderInfos)
	if len(errs) > 0 {
		return nil, errortypes.NewAggregateErrors("user sync", errs)
	}

	var closers []func()
	shutdown := func() {
		for _, closer := range closers {
			closer()
		}
	}
	defer func() {
		if err != nil {
			shutdown()
		}
	}()

	geo, closeGeo, err := newGeoLocation(cfg.GeoLocation)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeGeo)

	httpClient := &http.Client{}

	var sharedLists gdpr.VendorListCache
	if cfg.VendorListCache.Redis.Enabled {
		redisCache := gdpr.NewRedisVendorListCache(cfg.VendorListCache.Redis)
		sharedLists = redisCache
		closers = append(closers, func() {
			if err := redisCache.Close(); err != nil {
				glog.Errorf("Failed to close the vendor list cache: %v", err)
			}
		})
	}

	vendorLists := gdpr.NewVendorListService(cfg.GDPR, httpClient, sharedLists, r.MetricsEngine)
	refresher := gdpr.NewVendorListRefresher(vendorLists, time.Duration(cfg.GDPR.VendorListRefreshSeconds)*time.Second, clock.New())

	legacyLists := gdpr.NewLegacyVendorListService(cfg.GDPR, httpClient, r.MetricsEngine)
	r.LegacyGDPR = gdpr.NewGdprService(cfg.GDPR, geo, legacyLists.Fetch, r.MetricsEngine)

	tcf2Service := gdpr.NewTCF2Service(cfg.GDPR.TCF2, cfg.BidderInfos, vendorLists.Fetch)
	r.TCFDefiner = gdpr.NewTCFDefinerService(cfg.GDPR, tcf2Service, geo, gdpr.NewVendorIDResolver(cfg.BidderInfos), r.MetricsEngine)
	r.Privacy = enforcement.NewService(cfg.BidderInfos, r.TCFDefiner, r.MetricsEngine, enforcement.NewConfig(cfg))

	shuffler := usersync.NewShuffler()
	prioritized := cookiesync.NewPrioritizedCoopSyncProvider(cfg.UserSync.PrioritizedBidders(), cfg.BidderInfos, syncers, shuffler)
	coop := cookiesync.NewCoopSyncProvider(prioritized, cfg.BidderInfos, syncers, cfg.UserSync.Cooperative.EnabledByDefault, shuffler)
	syncService, err := cookiesync.NewService(cfg, cfg.BidderInfos, syncers, r.TCFDefiner, r.Privacy, coop, shuffler, r.MetricsEngine)
	if err != nil {
		return nil, err
	}

	refresher.Start()
	closers = append(closers, refresher.Stop)

	r.POST("/cookie_sync", endpoints.NewCookieSyncEndpoint(cfg, syncService, r.Privacy, r.MetricsEngine))
	r.GET("/setuid", endpoints.NewSetUIDEndpoint(cfg, syncers, r.Privacy, r.TCFDefiner))
	r.GET("/getuids", endpoints.NewGetUIDsEndpoint(cfg.HostCookie))
	r.GET("/info/bidders", infoEndpoints.NewBiddersEndpoint(cfg.BidderInfos))
	r.GET("/info/bidders/:bidderName", infoEndpoints.NewBidderDetailsEndpoint(cfg.BidderInfos))
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))
	r.HandlerFunc(http.MethodGet, "/version", endpoints.NewVersionEndpoint(version, revision))

	r.Shutdown = shutdown
	return r, nil
}

func newGeoLocation(cfg config.GeoLocation) (geolocation.GeoLocation, func(), error) {
	if !cfg.Enabled {
		return geolocation.NilGeoLocation{}, func() {}, nil
	}
	geo, err := maxmind.NewGeoLocation(cfg.MaxMind.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	glog.Infof("Loaded %s geolocation data from %s", maxmind.Vendor, cfg.MaxMind.DatabasePath)
	return geo, func() {
		if err := geo.Close(); err != nil {
			glog.Errorf("Failed to close the geolocation database: %v", err)
		}
	}, nil
}

// SupportCORS allows credentialed requests from every origin.
//
// Browsers must call /cookie_sync with "withCredentials" set so the uids cookie is sent, and any site may
// embed the sync. The uids cookie only identifies users and each bidder's sync endpoint already exposes
// the same ids.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}

package gdpr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/vendorlist"
	"github.com/prebid/go-gdpr/vendorlist2"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/util/task"
)

// VendorListFetcher returns the GVL for a GVL specification and list version.
type VendorListFetcher func(ctx context.Context, specVersion, listVersion uint16) (api.VendorList, error)

// failedFetchRetryInterval is the minimum wait before a version which failed to load is downloaded again.
const failedFetchRetryInterval = 10 * time.Minute

var latestSpecVersions = []uint16{2, 3}

type versionKey struct {
	specVersion uint16
	listVersion uint16
}

type pendingFetch struct {
	done chan struct{}
	list api.VendorList
	err  error
}

// VendorListService fetches global vendor lists over http and keeps every version it has seen.
// Concurrent requests for a version not yet loaded share a single download.
type VendorListService struct {
	client         *http.Client
	urlMaker       func(specVersion, listVersion uint16) string
	latestURLMaker func(specVersion uint16) string
	parse          func([]byte) (api.VendorList, error)
	timeout        time.Duration
	shared         VendorListCache
	metricsEngine  metrics.MetricsEngine
	clock          clock.Clock

	lists    sync.Map
	pending  sync.Map
	failures sync.Map
}

// NewVendorListService builds the TCF v2 service. The shared cache is optional.
func NewVendorListService(cfg config.GDPR, client *http.Client, shared VendorListCache, metricsEngine metrics.MetricsEngine) *VendorListService {
	return &VendorListService{
		client:         client,
		urlMaker:       vendorListURLMaker(cfg.VendorListURL),
		latestURLMaker: latestVendorListURLMaker(cfg.VendorListLatestURL),
		parse:          vendorlist2.ParseEagerly,
		timeout:        cfg.Timeouts.ActiveTimeout(),
		shared:         shared,
		metricsEngine:  metricsEngine,
		clock:          clock.New(),
	}
}

// NewLegacyVendorListService builds the TCF v1 service backing the legacy GdprService.
func NewLegacyVendorListService(cfg config.GDPR, client *http.Client, metricsEngine metrics.MetricsEngine) *VendorListService {
	return &VendorListService{
		client: client,
		urlMaker: func(_, listVersion uint16) string {
			return fmt.Sprintf(cfg.VendorListURLV1, listVersion)
		},
		parse:         vendorlist.ParseEagerly,
		timeout:       cfg.Timeouts.ActiveTimeout(),
		metricsEngine: metricsEngine,
		clock:         clock.New(),
	}
}

// vendorListURLMaker fills the list version into the template. Lists of other specification versions are
// served from the sibling path of the v2 archive.
func vendorListURLMaker(template string) func(specVersion, listVersion uint16) string {
	return func(specVersion, listVersion uint16) string {
		return fmt.Sprintf(specVersionPath(template, specVersion), listVersion)
	}
}

func latestVendorListURLMaker(url string) func(specVersion uint16) string {
	return func(specVersion uint16) string {
		return specVersionPath(url, specVersion)
	}
}

func specVersionPath(url string, specVersion uint16) string {
	if specVersion == 2 {
		return url
	}
	return strings.Replace(url, "/v2/", fmt.Sprintf("/v%d/", specVersion), 1)
}

func makeVendorListNotFoundError(listVersion uint16) error {
	return &errortypes.FailedToFetchVendorList{
		Message: fmt.Sprintf("gdpr vendor list version %d does not exist, or has not been loaded yet. Try again in a few minutes", listVersion),
	}
}

// Fetch returns the requested list. It waits for a download no longer than the request context allows.
// Fetch satisfies VendorListFetcher.
func (s *VendorListService) Fetch(ctx context.Context, specVersion, listVersion uint16) (api.VendorList, error) {
	key := versionKey{specVersion: specVersion, listVersion: listVersion}
	if list, ok := s.lists.Load(key); ok {
		return list.(api.VendorList), nil
	}
	if failedAt, ok := s.failures.Load(key); ok && s.clock.Since(failedAt.(time.Time)) < failedFetchRetryInterval {
		return nil, makeVendorListNotFoundError(listVersion)
	}

	fetch := &pendingFetch{done: make(chan struct{})}
	if actual, loaded := s.pending.LoadOrStore(key, fetch); loaded {
		fetch = actual.(*pendingFetch)
	} else {
		go s.load(key, fetch)
	}

	select {
	case <-fetch.done:
		return fetch.list, fetch.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load is detached from the request context. Each waiter gives up on its own deadline.
func (s *VendorListService) load(key versionKey, fetch *pendingFetch) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	list, err := s.loadShared(ctx, key)
	if list == nil {
		var body []byte
		body, list, err = s.download(ctx, s.urlMaker(key.specVersion, key.listVersion))
		if err == nil {
			s.saveShared(ctx, key, body)
		}
	}

	if err != nil {
		glog.Warningf("Failed to load vendor list v%d version %d: %v", key.specVersion, key.listVersion, err)
		s.failures.Store(key, s.clock.Now())
		fetch.err = makeVendorListNotFoundError(key.listVersion)
	} else {
		s.lists.Store(key, list)
		s.failures.Delete(key)
		fetch.list = list
	}
	close(fetch.done)
	s.pending.Delete(key)
}

func (s *VendorListService) loadShared(ctx context.Context, key versionKey) (api.VendorList, error) {
	if s.shared == nil {
		return nil, nil
	}
	body, err := s.shared.Get(ctx, key.specVersion, key.listVersion)
	if err != nil {
		if !errors.Is(err, ErrVendorListCacheMiss) {
			glog.Warningf("Shared vendor list cache unavailable: %v", err)
			s.metricsEngine.RecordVendorListFetch(metrics.VendorListSourceRedis, false)
		}
		return nil, nil
	}
	list, err := s.parse(body)
	if err != nil {
		glog.Errorf("Shared vendor list cache holds a malformed v%d version %d: %v", key.specVersion, key.listVersion, err)
		s.metricsEngine.RecordVendorListFetch(metrics.VendorListSourceRedis, false)
		return nil, nil
	}
	s.metricsEngine.RecordVendorListFetch(metrics.VendorListSourceRedis, true)
	return list, nil
}

func (s *VendorListService) saveShared(ctx context.Context, key versionKey, body []byte) {
	if s.shared == nil {
		return
	}
	if err := s.shared.Set(ctx, key.specVersion, key.listVersion, body); err != nil {
		glog.Warningf("Failed to share vendor list v%d version %d: %v", key.specVersion, key.listVersion, err)
	}
}

func (s *VendorListService) download(ctx context.Context, url string) ([]byte, api.VendorList, error) {
	body, list, err := s.get(ctx, url)
	s.metricsEngine.RecordVendorListFetch(metrics.VendorListSourceHTTP, err == nil)
	return body, list, err
}

func (s *VendorListService) get(ctx context.Context, url string) ([]byte, api.VendorList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build GET %s request: %v", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("error calling GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading response body from GET %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}

	list, err := s.parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s returned malformed JSON: %v", url, err)
	}
	return body, list, nil
}

// RefreshLatest downloads the latest list of every supported specification version. The lists are kept
// under the version they declare.
func (s *VendorListService) RefreshLatest(ctx context.Context) error {
	if s.latestURLMaker == nil {
		return nil
	}
	var errs []error
	for _, specVersion := range latestSpecVersions {
		body, list, err := s.download(ctx, s.latestURLMaker(specVersion))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := versionKey{specVersion: specVersion, listVersion: list.Version()}
		s.lists.Store(key, list)
		s.failures.Delete(key)
		s.saveShared(ctx, key, body)
	}
	return errors.Join(errs...)
}

// Run refreshes the latest lists under the active fetch timeout. It lets the service be scheduled as a
// task.Runner.
func (s *VendorListService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.RefreshLatest(ctx)
}

// NewVendorListRefresher schedules RefreshLatest. A zero interval refreshes once at start.
func NewVendorListRefresher(service *VendorListService, interval time.Duration, clk clock.Clock) *task.TickerTask {
	return task.NewTickerTaskWithOptions(task.Options{
		Name:     "vendor list refresh",
		Interval: interval,
		Runner:   service,
		Clock:    clk,
	})
}

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"

	"github.com/prebid/prebid-privacy/config"
	metricsconfig "github.com/prebid/prebid-privacy/metrics/config"
)

type namedServer struct {
	name   string
	server *http.Server
}

// Listen serves requests on the configured port, plus the Prometheus port when one is set. It blocks until
// the process receives SIGTERM or SIGINT, then shuts every server down gracefully.
func Listen(cfg *config.Configuration, handler http.Handler, metrics *metricsconfig.DetailedMetricsEngine) error {
	servers := []namedServer{{name: "Main", server: newMainServer(cfg, handler)}}
	if cfg.Metrics.Prometheus.Port != 0 {
		prometheusServer, err := newPrometheusServer(cfg, metrics)
		if err != nil {
			return err
		}
		servers = append(servers, namedServer{name: "Prometheus", server: prometheusServer})
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, s := range servers {
		listener, err := newListener(s.server.Addr)
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}
			return fmt.Errorf("%s server: %w", s.name, err)
		}
		listeners = append(listeners, listener)
	}

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)

	// each server gets its own copy of the stop signal
	done := make(chan struct{})
	stoppers := make([]chan<- os.Signal, 0, len(servers))
	for i, s := range servers {
		stopper := make(chan os.Signal)
		stoppers = append(stoppers, stopper)
		go shutdownAfterSignals(s.server, stopper, done)
		go runServer(s.server, s.name, listeners[i])
	}

	wait(stopSignals, done, stoppers...)
	return nil
}

func newMainServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	serverHandler := handler
	if cfg.EnableGzip {
		serverHandler = gziphandler.GzipHandler(handler)
	}

	return &http.Server{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:      serverHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	err := server.Serve(listener)
	glog.Errorf("%s server quit with error: %v", name, err)
}

func newListener(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen for TCP connections on %s: %w", address, err)
	}

	if casted, ok := ln.(*net.TCPListener); ok {
		return &keepAliveListener{casted}, nil
	}
	glog.Warning("net.Listen(\"tcp\", \"addr\") didn't return a TCPListener. Connections will not be kept alive.")
	return ln, nil
}

// wait forwards the first inbound signal to every outbound channel and returns once each has reported done.
func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound
	for _, to := range outbound {
		go sendSignal(to, sig)
	}
	for range outbound {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- struct{}{}
}

func sendSignal(to chan<- os.Signal, sig os.Signal) {
	to <- sig
}

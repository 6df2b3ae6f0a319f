// Command vpls-server runs the VPLS server half: it accepts TCP
// connections, answers every command frame from the fake GPU metadata
// provider, and exposes a Prometheus /metrics endpoint the way
// etalazz-vsa's churn telemetry does (prom_counters.go's
// startMetricsEndpoint: a bare net/http.ServeMux with promhttp.Handler
// mounted on /metrics, run in its own goroutine).
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venusplus/vpls/internal/serverdispatch"
	"github.com/venusplus/vpls/internal/transport"
)

func main() {
	listen := flag.String("listen", ":5556", "address to accept client connections on")
	metricsAddr := flag.String("metrics", ":9556", "address to serve /metrics on")
	flag.Parse()

	startMetricsEndpoint(*metricsAddr)

	srv := transport.NewServer(*listen, func(t *transport.TCPTransport) {
		serverdispatch.Serve(t)
	})
	log.Printf("vpls-server: listening on %s, metrics on %s", *listen, *metricsAddr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("vpls-server: %v", err)
	}
}

func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("vpls-server: metrics endpoint: %v", err)
		}
	}()
}

// Command notaryd runs the web-proof notary: the notary relay proxy, the
// signing endpoint, and the NIVC public-parameter store, behind a single
// HTTP server. Its startup, mux wiring, and signal-driven graceful shutdown
// are adapted from the teacher's notary.go main(), generalized from the
// teacher's 2PC session-step dispatch to this domain's fixed set of
// endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/webproof/notary/internal/cryptoutil"
	"github.com/webproof/notary/internal/nivc"
	"github.com/webproof/notary/internal/relay"
)

func main() {
	addr := flag.String("addr", "0.0.0.0:10011", "listen address")
	paramDir := flag.String("param-dir", "nivc-params", "directory holding <size>.json/<size>.bin public parameter pairs")
	sessionTTL := flag.Duration("session-ttl", 20*time.Minute, "relay session table entry TTL")
	allowPrivateTargets := flag.Bool("allow-private-targets", false, "permit relaying to private/reserved/loopback target hosts")
	devMode := flag.Bool("dev", false, "use human-readable console logging instead of JSON")
	flag.Parse()

	log := newLogger(*devMode)
	defer log.Sync()

	paramStore, err := nivc.LoadParamStore(*paramDir)
	if err != nil {
		log.Fatal("loading nivc public parameters", zap.Error(err))
	}
	log.Info("loaded nivc public parameters", zap.Ints("sizes", paramStore.SupportedSizes()))

	signingKey, err := cryptoutil.GenerateSigningKey()
	if err != nil {
		log.Fatal("generating signing key", zap.Error(err))
	}
	signer := relay.NewSigner(signingKey, log)

	table := relay.NewSessionTable(*sessionTTL, log)
	defer table.Close()

	policy := relay.Policy{AllowPrivateTargets: *allowPrivateTargets}
	server := relay.NewServer(policy, table, signer, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HandleHealth)
	mux.HandleFunc("/session", server.HandleCreateSession)
	mux.HandleFunc("/v1", server.HandleUpgrade)
	mux.HandleFunc("/sign", server.HandleSign)
	mux.HandleFunc("/signing-key.pem", signer.ServePublicKey)
	mux.HandleFunc("/nivc/sizes", nivcSizesHandler(paramStore))
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodOptions {
			server.HandleOptions(w, req)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	ctx, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("listening", zap.String("addr", *addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("serving", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	go func() {
		<-sig
		log.Fatal("terminating on second signal")
	}()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	cancel()
}

// nivcSizesHandler serves the block sizes this notary has loaded public
// parameters for, mirroring the teacher's zkey.ZkeyHttpHandler.GetSupportedBlockSizes.
func nivcSizesHandler(store *nivc.ParamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Sizes []int `json:"sizes"`
		}{Sizes: store.SupportedSizes()})
	}
}

func newLogger(dev bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

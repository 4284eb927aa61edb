// cmd/nodeserver is the main entrypoint for a communitas-core storage node.
//
// Configuration is entirely via flags so a single binary can serve any role
// in the overlay.
//
// Example:
//
//	./nodeserver --id node1 --addr :8080 --master-key-file /var/communitas/node1.key
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saorsa-labs/communitas-core/internal/api"
	"github.com/saorsa-labs/communitas-core/internal/config"
	"github.com/saorsa-labs/communitas-core/internal/kademlia"
	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/pqc"
	"github.com/saorsa-labs/communitas-core/internal/storage"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

func main() {
	cfg := config.Default()

	nodeID := flag.String("id", cfg.NodeID, "Unique node identifier")
	addr := flag.String("addr", cfg.Addr, "Listen address (host:port)")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory for the node's PrivateMax write-ahead log and snapshots")
	masterKeyFile := flag.String("master-key-file", "", "Path to the node's PQC master key (generated if missing)")
	flag.Parse()

	cfg.NodeID = *nodeID
	cfg.Addr = *addr
	cfg.DataDir = *dataDir

	masterKey, err := loadOrGenerateMasterKey(*masterKeyFile)
	if err != nil {
		log.Fatalf("master key: %v", err)
	}

	self := nodeIDFromString(*nodeID)

	peers := peermanager.New(cfg.PeerManagerConfig())
	dht := kademlia.New(self, peers, kademlia.NoopRPC{})
	crypto := pqc.NewManager(masterKey)
	engine, err := storage.OpenEngine(crypto, dht, cfg.DataDir)
	if err != nil {
		log.Fatalf("open storage engine: %v", err)
	}
	defer engine.Close()

	handler := api.NewHandler(engine, peers, *nodeID)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"node":   *nodeID,
			"status": "ok",
			"peers":  dht.RoutingTable().Size(),
		})
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	maintCtx, cancelMaint := context.WithCancel(context.Background())
	go runMaintenance(maintCtx, engine, cfg)

	go func() {
		log.Printf("Node %s listening on %s", *nodeID, *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down node", *nodeID)
	cancelMaint()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if err := engine.Snapshot(); err != nil {
		log.Printf("final snapshot error: %v", err)
	}
}

// runMaintenance drives the engine's periodic cleanup on the shortest of
// the three spec'd intervals, plus a snapshot of PrivateMax content so the
// write-ahead log never grows past one maintenance cycle's worth of
// writes. A fuller deployment would also drive the fault-tolerance
// self-healing loop (internal/faulttolerance.Loop) alongside it, wired to
// the peer manager's observed failures.
func runMaintenance(ctx context.Context, engine *storage.Engine, cfg config.Config) {
	ticker := time.NewTicker(cfg.DetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, rotated := engine.Maintenance(time.Now())
			if evicted > 0 || len(rotated) > 0 {
				log.Printf("maintenance: evicted=%d cache entries, rotated namespaces=%v", evicted, rotated)
			}
			if err := engine.Snapshot(); err != nil {
				log.Printf("snapshot error: %v", err)
			}
		}
	}
}

func loadOrGenerateMasterKey(path string) ([]byte, error) {
	if path == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Printf("warning: no --master-key-file given, using an ephemeral key for this process lifetime only")
		return key, nil
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		return raw, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	log.Printf("generated new master key at %s", path)
	return key, nil
}

func nodeIDFromString(s string) types.NodeID {
	var id types.NodeID
	copy(id[:], s)
	return id
}

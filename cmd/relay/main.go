package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leanke/puffer-red/internal/transport/relay"
)

func main() {
	var (
		addr          = flag.String("addr", ":3344", "http listen address")
		viewerQueue   = flag.Int("viewer_queue", 256, "per-viewer outbound queue length")
		maxMsgBytes   = flag.Int64("max_message_bytes", 4<<20, "largest accepted batch in bytes")
		loopbackWatch = flag.Bool("loopback_watch", false, "only accept /watch from loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lmicroseconds)

	s, err := relay.NewServer(relay.Config{
		ViewerQueue:       *viewerQueue,
		MaxMessageBytes:   *maxMsgBytes,
		LoopbackWatchOnly: *loopbackWatch,
	}, logger)
	if err != nil {
		logger.Fatalf("relay: %v", err)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	st := s.Stats()
	logger.Printf("stopped: received=%d forwarded=%d dropped=%v", st.Received, st.Forwarded, st.Dropped)
}

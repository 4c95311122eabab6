// Command sink is an example output worker: it attaches to a router,
// reads whatever composited frame arrives, and periodically logs a
// checksum of the video and audio planes. It stands in for a real
// media-player consumer, which is out of scope for this repository.
package main

import (
	"fmt"
	"hash/crc32"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patchbay/patchbay/internal/workerclient"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sink <name>",
	Short: "Attach to a patchbay router as an output and report frame checksums",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args[0])
	},
}

func init() {
	rootCmd.Flags().String("router", "localhost:8080", "router control-plane address (host:port)")
	rootCmd.Flags().Duration("report-interval", time.Second, "how often to log a checksum of the latest frame")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("sink exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, name string) error {
	routerAddr, _ := cmd.Flags().GetString("router")
	reportInterval, _ := cmd.Flags().GetDuration("report-interval")
	logger := slog.With("worker", "sink", "name", name)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("sink: bind control port: %w", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port
	go http.Serve(listener, http.NotFoundHandler())

	client, err := workerclient.Dial(routerAddr, workerclient.RoleOutput, port)
	if err != nil {
		return fmt.Errorf("sink: dial router: %w", err)
	}
	defer client.Close()

	client.OnReload(func() {
		logger.Info("router asked for a reload")
	})

	logger.Info("attached", "region", client.RegionName(), "port", port)

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	buf := client.Buffer()
	for {
		select {
		case <-ticker.C:
			buf.AboutToRead()
			f := buf.Read()
			videoSum := crc32.ChecksumIEEE(f.Video[:])
			var audioSum int64
			for _, s := range f.Audio {
				audioSum += int64(s)
			}
			logger.Info("frame checksum", "video_crc32", videoSum, "audio_sum", audioSum)
		case <-sigCh:
			logger.Info("shutting down")
			return nil
		}
	}
}

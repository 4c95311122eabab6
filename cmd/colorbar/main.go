// Command colorbar is an example input worker: it generates a static BGRA
// colour-bar test pattern and silent audio at 25 fps and feeds them to the
// router through the worker SDK. It stands in for the hardware "colour
// source" producers the specification leaves out of scope.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patchbay/patchbay/internal/frame"
	"github.com/patchbay/patchbay/internal/workerclient"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "colorbar <display-name>",
	Short: "Feed a BGRA colour-bar test pattern into a patchbay router",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args[0])
	},
}

func init() {
	rootCmd.Flags().String("router", "localhost:8080", "router control-plane address (host:port)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("colorbar exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, displayName string) error {
	routerAddr, _ := cmd.Flags().GetString("router")
	logger := slog.With("worker", "colorbar", "display", displayName)

	// Bind the ephemeral control port the handshake advertises, per §6.
	// Nothing is served over it; the preview surface is out of scope.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("colorbar: bind control port: %w", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port
	go http.Serve(listener, http.NotFoundHandler())

	client, err := workerclient.Dial(routerAddr, workerclient.RoleInput, port)
	if err != nil {
		return fmt.Errorf("colorbar: dial router: %w", err)
	}
	defer client.Close()

	logger.Info("attached", "region", client.RegionName(), "port", port)

	pattern := &frame.Frame{}
	paintBars(pattern)

	ticker := time.NewTicker(time.Second / frame.FPS)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	buf := client.Buffer()
	for {
		select {
		case <-ticker.C:
			w := buf.Write()
			*w = *pattern
			buf.DoneWriting()
		case <-sigCh:
			logger.Info("shutting down")
			return nil
		}
	}
}

// paintBars fills f with eight vertical bars in SMPTE order and leaves
// the audio plane silent.
func paintBars(f *frame.Frame) {
	bars := [8][3]byte{
		{192, 192, 192}, // white (BGR)
		{0, 192, 192},   // yellow
		{192, 192, 0},   // cyan
		{0, 192, 0},     // green
		{192, 0, 192},   // magenta
		{0, 0, 192},     // red
		{192, 0, 0},     // blue
		{0, 0, 0},       // black
	}
	barWidth := frame.VideoWidth / len(bars)

	for y := 0; y < frame.VideoHeight; y++ {
		for x := 0; x < frame.VideoWidth; x++ {
			band := x / barWidth
			if band >= len(bars) {
				band = len(bars) - 1
			}
			c := bars[band]
			off := frame.PixelOffset(x, y)
			f.Video[off+0] = c[0]
			f.Video[off+1] = c[1]
			f.Video[off+2] = c[2]
			f.Video[off+3] = 255 // opaque
		}
	}
}
